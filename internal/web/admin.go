package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/study-centre/internal/progress"
)

// Reload re-reads the catalogue, builds a fresh site and swaps it in. On
// error the current site keeps serving.
func (s *Server) Reload(ctx context.Context) (ReloadMessage, error) {
	if s.cfg.Reload == nil {
		return ReloadMessage{}, fmt.Errorf("reload is not configured")
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cat, err := s.cfg.Reload(ctx)
	if err != nil {
		return ReloadMessage{}, fmt.Errorf("reading catalogue: %w", err)
	}
	st, err := s.build(cat, s.site.Load().version+1)
	if err != nil {
		return ReloadMessage{}, err
	}
	s.site.Store(st)

	msg := ReloadMessage{Type: "reload", Version: st.version, Courses: len(cat.Courses())}
	s.logger.Info("catalogue reloaded", "version", msg.Version, "courses", msg.Courses, "findings", len(cat.Findings()))
	if err := s.cfg.Events.LogEvent(ctx, progress.Event{
		Type: progress.EventCatalogReload,
		Data: map[string]any{"version": msg.Version, "courses": msg.Courses},
	}); err != nil {
		s.logger.Warn("failed to log event", "type", progress.EventCatalogReload, "error", err)
	}
	s.hub.Broadcast(msg)
	return msg, nil
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AdminTokenHash == "" || s.cfg.Reload == nil {
		writeErr(w, http.StatusNotFound, "reload is disabled")
		return
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminTokenHash), []byte(strings.TrimSpace(token))) != nil {
		writeErr(w, http.StatusUnauthorized, "invalid token")
		return
	}

	msg, err := s.Reload(r.Context())
	if err != nil {
		s.logger.Error("catalogue reload failed", "error", err)
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleReloadSocket streams reload messages to authoring tools.
func (s *Server) handleReloadSocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originHosts(s.cfg.CORSOrigins)})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer c.CloseNow()

	msgs, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	ctx := c.CloseRead(r.Context())
	if err := wsjson.Write(ctx, c, ReloadMessage{Type: "hello", Version: s.Version()}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			if err := wsjson.Write(ctx, c, msg); err != nil {
				return
			}
		}
	}
}

// originHosts turns CORS origins into websocket origin host patterns.
func originHosts(origins []string) []string {
	var out []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
