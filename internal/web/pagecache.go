package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/study-centre/internal/platform/cache"
	"github.com/p-n-ai/study-centre/internal/routing"
)

// pageCache stores rendered pages. Keys carry the catalogue version, so a
// reload makes every older entry unreachable without deleting it.
type pageCache struct {
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

func newPageCache(store cache.Store, ttl time.Duration, logger *slog.Logger) *pageCache {
	return &pageCache{store: store, ttl: ttl, logger: logger}
}

func pageKey(version uint64, e *routing.Entry) string {
	return fmt.Sprintf("page:v%d:%s", version, routeKey(e))
}

func (c *pageCache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	body, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("page cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return body, true
}

func (c *pageCache) set(ctx context.Context, key string, body []byte) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, body, c.ttl); err != nil {
		c.logger.Warn("page cache write failed", "key", key, "error", err)
	}
}
