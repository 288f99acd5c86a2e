// Package web serves the study centre: HTML pages for every routed entry,
// inline check form posts, the JSON API, content reload and health checks.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/platform/cache"
	"github.com/p-n-ai/study-centre/internal/progress"
	"github.com/p-n-ai/study-centre/internal/quiz"
	"github.com/p-n-ai/study-centre/internal/routing"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Config holds everything a Server needs.
type Config struct {
	Catalog *catalog.Catalog
	// Reload re-reads the catalogue for POST /admin/reload. Nil disables reloading.
	Reload  func(ctx context.Context) (*catalog.Catalog, error)
	Quiz    *quiz.Service
	Events  progress.EventLogger
	Cache   cache.Store // nil disables the page cache
	Routing routing.Options

	FallbackAfter  time.Duration // wait before the loading page is served
	CacheTTL       time.Duration
	AdminTokenHash string // bcrypt hash of the reload token
	CORSOrigins    []string
	Checks         map[string]Checker // readiness checks by name
	Logger         *slog.Logger
}

// site is one immutable build of the catalogue and its routes.
type site struct {
	version  uint64
	catalog  *catalog.Catalog
	registry *routing.Registry
	router   http.Handler
}

// Server is the HTTP front end. Reload swaps the whole site atomically;
// requests already in flight finish against the site they started with.
type Server struct {
	cfg    Config
	logger *slog.Logger
	pages  *pageCache
	hub    *Hub

	site     atomic.Pointer[site]
	reloadMu sync.Mutex
	handler  http.Handler
}

// New builds the route registry for cfg.Catalog and the HTTP handler.
func New(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if cfg.Quiz == nil {
		return nil, fmt.Errorf("quiz service is nil")
	}
	if cfg.Events == nil {
		cfg.Events = progress.NopEventLogger{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FallbackAfter <= 0 {
		cfg.FallbackAfter = 2 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		pages:  newPageCache(cfg.Cache, cfg.CacheTTL, cfg.Logger),
		hub:    NewHub(),
	}
	st, err := s.build(cfg.Catalog, 1)
	if err != nil {
		return nil, err
	}
	s.site.Store(st)
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub returns the reload broadcast hub.
func (s *Server) Hub() *Hub { return s.hub }

// Version returns the current catalogue version. It starts at 1 and grows by
// one on every successful reload.
func (s *Server) Version() uint64 { return s.site.Load().version }

// Registry returns the routes currently served.
func (s *Server) Registry() *routing.Registry { return s.site.Load().registry }

func (s *Server) build(cat *catalog.Catalog, version uint64) (*site, error) {
	reg, err := routing.Build(cat, s.cfg.Routing)
	if err != nil {
		return nil, fmt.Errorf("building routes: %w", err)
	}
	st := &site{version: version, catalog: cat, registry: reg}

	r := chi.NewRouter()
	reg.Mount(r,
		func(ar chi.Router, a *routing.Area) {
			ar.Get("/", s.handleArea(st, a))
		},
		func(er chi.Router, e *routing.Entry) {
			er.Get("/", s.handlePage(st, e))
			if e.Kind == routing.KindSection {
				er.Post("/"+routing.ChecksSegment+"/{checkID}", s.handleInlineCheck(st, e))
			}
		},
	)
	r.NotFound(s.handleNotFound)
	st.router = r
	return st, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(s.logger), middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/", s.handleHome)
	r.Get("/ws/reload", s.handleReloadSocket)
	r.Post("/admin/reload", s.handleReload)

	r.Handle(routing.StudyCentre, http.HandlerFunc(s.serveContent))
	r.Handle(routing.StudyCentrePrefix+"*", http.HandlerFunc(s.serveContent))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Learner-ID"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Get("/catalog", s.apiCatalog)
		r.Get("/pages/{area}/{slug}", s.apiPage)
		r.Post("/checks/{area}/{slug}/{checkID}", s.apiCheck)
		r.Post("/quizzes/{area}/{slug}", s.apiSubmitQuiz)
		r.Post("/exams/{area}/{slug}/attempts", s.apiStartExam)
		r.Post("/attempts/{id}/submit", s.apiSubmitExam)
		r.Get("/attempts/{id}", s.apiAttempt)
		r.Get("/learners/{learnerID}/attempts", s.apiLearnerAttempts)
	})
	return r
}

// serveContent hands study-centre paths to the current site's router. The
// outer routing context is dropped so the site router matches the full path.
func (s *Server) serveContent(w http.ResponseWriter, r *http.Request) {
	st := s.site.Load()
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, nil)
	st.router.ServeHTTP(w, r.WithContext(ctx))
}

// lookup resolves an area and slug against the current site.
func (s *Server) lookup(area, slug string) (*site, *routing.Entry, bool) {
	st := s.site.Load()
	e, ok := st.registry.Lookup(area, slug)
	return st, e, ok
}

// routeKey identifies an entry in attempts and events.
func routeKey(e *routing.Entry) string { return e.Area + "/" + e.Slug }

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
