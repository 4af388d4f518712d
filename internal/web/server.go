// Package web serves the row API over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetrest/internal/config"
	"github.com/JonMunkholm/sheetrest/internal/core"
	"github.com/JonMunkholm/sheetrest/internal/metrics"
	"github.com/JonMunkholm/sheetrest/internal/web/middleware"
)

// Server is the HTTP server for the row API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	metrics *metrics.Metrics
	limiter *middleware.RateLimiter
	router  *chi.Mux
	server  *http.Server
	prefix  string
	stop    chan struct{}
}

// NewServer creates a Server. m may be nil when metrics are disabled.
func NewServer(service *core.Service, cfg *config.Config, m *metrics.Metrics) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		metrics: m,
		router:  chi.NewRouter(),
		prefix:  strings.TrimRight(cfg.Server.PathPrefix, "/"),
		stop:    make(chan struct{}),
	}
	if cfg.Rate.Enabled {
		var onLimit func()
		if m != nil {
			onLimit = m.RateLimited
		}
		s.limiter = middleware.NewRateLimiter(cfg.Rate, onLimit)
		go s.limiter.Run(s.stop)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.CORS(s.cfg.CORS))
	s.router.Use(middleware.Logger)
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(chimw.Recoverer)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	api := func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.HandleFunc("/", s.handleAPI)
		r.HandleFunc("/*", s.handleAPI)
	}
	if s.prefix == "" {
		s.router.Group(api)
		return
	}
	s.router.Route(s.prefix, api)
}

// Start listens on the configured address until Shutdown. It returns nil at
// once if Shutdown has already been called.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its background sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
