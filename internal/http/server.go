package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/charts"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/ports"
	appweb "fintrack/web"
)

const (
	handlerTimeout   = 7 * time.Second
	readyTimeout     = 5 * time.Second
	chartCacheSize   = 512
	cacheSweepPeriod = time.Minute
)

type Server struct {
	http.Server

	cfg       *config.Config
	opener    ports.SessionOpener
	ready     backend.ReadyFunc
	logger    *applog.Logger
	templates *template.Template
	static    fs.FS
	today     func() core.Date

	sessions *cache.LRUCache[*session]
	charts   *cache.LRUCache[[]byte]
	renderer *charts.Renderer
	caches   *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware

	metrics      appMetrics
	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides today's date for new sessions.
func WithClock(today func() core.Date) Option {
	return func(s *Server) { s.today = today }
}

// WithTemplates replaces the embedded templates and static files.
func WithTemplates(fsys fs.FS) Option {
	return func(s *Server) { s.static = fsys }
}

// NewServer wires the router, middlewares and caches around a backend.
func NewServer(cfg *config.Config, be *backend.BackendResult, logger *applog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		cfg:      cfg,
		opener:   be.Opener,
		ready:    be.Ready,
		logger:   logger,
		today:    core.Today,
		static:   appweb.FS,
		charts:   cache.NewLRUCache[[]byte](chartCacheSize, cfg.SessionTTL),
		renderer: charts.NewRenderer(),
		caches:   cache.NewManager(logger),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(logger),
		metrics:  appMetrics{started: time.Now()},
	}
	for _, o := range opts {
		o(s)
	}
	s.sessions = cache.NewLRUCache[*session](cfg.MaxSessions, cfg.SessionTTL,
		cache.WithSlidingExpiry[*session](),
		cache.WithEvictHook(func(id string, _ *session) {
			s.forgetCharts(id)
		}),
	)
	s.trace = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := parseTemplates(s.static)
	if err != nil {
		return nil, err
	}
	s.templates = t

	s.caches.Register("sessions", s.sessions)
	s.caches.Register("charts", s.charts)
	s.caches.Register("rate_limit", s.limiter)
	s.caches.StartCleanup(cacheSweepPeriod)

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.CleanPath)
	r.Use(s.trace.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	if sub, err := fs.Sub(s.static, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.CacheFor(time.Hour)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount static files", applog.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(chimw.Timeout(handlerTimeout))
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, nil))

		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Get("/signup", s.handleSignupPage)
		r.Post("/signup", s.handleSignup)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/", s.handleDashboard)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Get("/charts/{kind}.png", s.handleChart)

			r.Route("/imports", func(r chi.Router) {
				r.Post("/", s.handleImportUpload)
				r.Post("/preview/{index}", s.handlePreviewEdit)
				r.Post("/preview/{index}/delete", s.handlePreviewDelete)
				r.Post("/confirm", s.handleImportConfirm)
				r.Post("/cancel", s.handleImportCancel)
			})
		})
	})
	return r
}

// Shutdown stops the cache sweeper and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ActiveSessions is the number of live browser sessions.
func (s *Server) ActiveSessions() int {
	return s.sessions.Size()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady checks the templates and the backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Backend not ready", applog.FieldError, err)
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["sessions"] = map[string]any{"active": s.sessions.Size(), "max": s.cfg.MaxSessions}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"backend":   s.cfg.DataBackend,
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
