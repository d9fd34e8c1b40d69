// Package web provides the JSON HTTP API over the record service.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	mw "github.com/JonMunkholm/stockroom/internal/web/middleware"
)

// Server is the HTTP server for the record API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	observer      mw.HTTPObserver
	metrics       http.Handler
	stopLimiters  context.CancelFunc
	limitersGroup sync.WaitGroup
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics records per-route request metrics and serves handler at /metrics.
func WithMetrics(observer mw.HTTPObserver, handler http.Handler) Option {
	return func(s *Server) {
		s.observer = observer
		s.metrics = handler
	}
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopLimiters = cancel

	s.setupMiddleware()
	s.setupRoutes(ctx)

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
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.observer != nil {
		s.router.Use(mw.Metrics(s.observer))
	}

	// Security hardening
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(ctx context.Context) {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		if s.cfg.Rate.Enabled {
			r.Use(s.newRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute).middleware)
		}

		r.Get("/entities", s.handleListEntities)
		r.Get("/audit", s.handleQueryAudit)

		r.Route("/{entity}", func(r chi.Router) {
			r.Post("/validate", s.handleValidate)
			r.Post("/check-duplicates", s.handleCheckDuplicates)
			r.Post("/metrics", s.handleComputeMetrics)

			r.Group(func(r chi.Router) {
				r.Use(requireActor)
				if s.cfg.Rate.Enabled {
					r.Use(s.newRateLimiter(ctx, s.cfg.Rate.ImportLimit).middleware)
				}
				r.Post("/import", s.handleImport)
			})

			r.With(requireActor).Post("/", s.handleCreate)
			r.Get("/{id}", s.handleGetRecord)
			r.With(requireActor).Put("/{id}", s.handleUpdate)
			r.With(requireActor).Delete("/{id}", s.handleDelete)
			r.Get("/{id}/history", s.handleRecordHistory)
		})
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	return s.server.Shutdown(ctx)
}

// Close stops the rate limiter cleanup goroutines.
func (s *Server) Close() {
	s.stopLimiters()
	s.limitersGroup.Wait()
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// newRateLimiter creates a per-IP limiter whose cleanup runs until ctx ends.
func (s *Server) newRateLimiter(ctx context.Context, perMinute int) *rateLimiter {
	rl := newRateLimiter(perMinute, time.Minute)
	s.limitersGroup.Add(1)
	go func() {
		defer s.limitersGroup.Done()
		rl.cleanup(ctx)
	}()
	return rl
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// The API serves JSON only
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
