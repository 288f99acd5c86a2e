package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/study-centre/courses"
	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/platform/cache"
	"github.com/p-n-ai/study-centre/internal/platform/config"
	"github.com/p-n-ai/study-centre/internal/platform/database"
	"github.com/p-n-ai/study-centre/internal/platform/lazy"
	"github.com/p-n-ai/study-centre/internal/progress"
	"github.com/p-n-ai/study-centre/internal/quiz"
	"github.com/p-n-ai/study-centre/internal/routing"
	"github.com/p-n-ai/study-centre/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, cleanup, err := newServer(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      app.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "routes", len(app.Registry().Entries()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openCatalog reads the configured catalogue directory, or the embedded one.
func openCatalog(cfg config.ContentConfig) (*catalog.Catalog, error) {
	if cfg.Path != "" {
		return catalog.OpenDir(cfg.Path)
	}
	return catalog.Open(courses.FS)
}

// newServer wires storage, the catalogue and the HTTP server. Without a
// database URL attempts and events stay in memory; without a cache URL
// rendered pages are cached in process.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*web.Server, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*web.Server, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	checks := make(map[string]web.Checker)

	var (
		store  progress.Store       = progress.NewMemoryStore()
		events progress.EventLogger = progress.NopEventLogger{}
	)
	if cfg.HasDatabase() {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fail(fmt.Errorf("connecting to database: %w", err))
		}
		closers = append(closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrating database: %w", err))
		}
		pg, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			return fail(err)
		}
		store = pg
		events = progress.NewPostgresEventLogger(db.Pool)
		checks["database"] = db.HealthCheck
		logger.Info("using postgres for attempts and events")
	} else {
		logger.Info("LEARN_DATABASE_URL not set, keeping attempts in memory")
	}

	var pages cache.Store = cache.NewMemoryCache(0)
	if cfg.HasCache() {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fail(fmt.Errorf("connecting to cache: %w", err))
		}
		closers = append(closers, func() { _ = c.Close() })
		pages = c
		checks["cache"] = c.HealthCheck
	}

	cat, err := openCatalog(cfg.Content)
	if err != nil {
		return fail(err)
	}
	if cfg.Content.Strict {
		if findings := cat.Lint(ctx); len(findings) > 0 {
			for _, f := range findings {
				logger.Error("content finding", "finding", f.String())
			}
			return fail(fmt.Errorf("catalogue has %d problems; run contentcheck", len(findings)))
		}
	}
	for _, f := range cat.Findings() {
		logger.Warn("skipped course manifest", "finding", f.String())
	}

	svc := quiz.NewService(store, events, quiz.WithGrace(cfg.Exam.Grace))
	app, err := web.New(web.Config{
		Catalog: cat,
		Reload:  func(context.Context) (*catalog.Catalog, error) { return openCatalog(cfg.Content) },
		Quiz:    svc,
		Events:  events,
		Cache:   pages,
		Routing: routing.Options{
			Policy: lazy.Policy{
				Attempts:   cfg.Loader.Attempts,
				Timeout:    cfg.Loader.Timeout,
				Backoff:    cfg.Loader.Backoff,
				MaxBackoff: cfg.Loader.MaxBackoff,
			},
			Tracker: progress.LoadTracker(events, logger),
		},
		FallbackAfter:  cfg.Loader.FallbackAfter,
		CacheTTL:       cfg.Cache.TTL,
		AdminTokenHash: cfg.Admin.TokenHash,
		CORSOrigins:    cfg.CORS.Origins,
		Checks:         checks,
		Logger:         logger,
	})
	if err != nil {
		return fail(err)
	}
	return app, cleanup, nil
}
