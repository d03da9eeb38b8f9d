package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prilive-com/vigil/alert"
	"github.com/prilive-com/vigil/health"
	"github.com/prilive-com/vigil/ratelimit"
)

// Server exposes health reports and alert statistics over HTTP.
type Server struct {
	logger  *slog.Logger
	cfg     Config
	checker *health.Checker
	alerts  *alert.Manager
	limiter *ratelimit.Limiter

	srv *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAlertManager wires alert statistics endpoints.
func WithAlertManager(m *alert.Manager) Option {
	return func(s *Server) { s.alerts = m }
}

// WithRateLimiter applies request rate limiting to all routes, using
// Config.RateLimitMax and Config.RateLimitWindow.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New creates a Server around the given health checker.
func New(cfg Config, checker *health.Checker, opts ...Option) *Server {
	s := &Server{
		logger:  slog.Default(),
		cfg:     cfg,
		checker: checker,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// Handler returns the configured router, useful for mounting under an
// existing server.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.limiter != nil && s.cfg.RateLimitMax > 0 {
		r.Use(s.limiter.Middleware(
			ratelimit.Options{MaxRequests: s.cfg.RateLimitMax, Window: s.cfg.RateLimitWindow},
			ratelimit.IdentityOptions{},
		))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/circuit-breakers", s.handleBreakers)
	r.Post("/health/circuit-breakers/reset", s.handleBreakersReset)
	r.Get("/health/{service}", s.handleService)

	if s.alerts != nil {
		r.Get("/alerts/statistics", s.handleAlertStatistics)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.checker.ExecuteAll(r.Context())

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, report)
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")

	report, err := s.checker.CheckService(r.Context(), name)
	if err != nil {
		if errors.Is(err, health.ErrCheckNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown service %q", name))
			return
		}
		s.logger.Error("service check failed", "service", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "check failed")
		return
	}

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, report)
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.checker.BreakerSnapshots())
}

func (s *Server) handleBreakersReset(w http.ResponseWriter, r *http.Request) {
	s.checker.ResetBreakers()
	s.logger.Info("circuit breakers reset via API")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleAlertStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.alerts.Statistics())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully: after the drain delay for load balancers to stop routing,
// in-flight requests get ShutdownTimeout to complete.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server listening", "addr", s.srv.Addr, "tls", s.cfg.TLSCertPath != "")
		var err error
		if s.cfg.TLSCertPath != "" && s.cfg.TLSKeyPath != "" {
			err = s.srv.ListenAndServeTLS(s.cfg.TLSCertPath, s.cfg.TLSKeyPath)
		} else {
			err = s.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutdown requested, draining", "delay", s.cfg.DrainDelay)
	time.Sleep(s.cfg.DrainDelay)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
