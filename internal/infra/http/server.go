package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/internal/infra/http/middleware"
	"github.com/refundly/webhooks/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	rateLimit    Middleware
	cleanupFuncs []func()
}

// ServerOption is a function that configures the server.
type ServerOption func(*Server)

// WithRouter sets a custom router implementation.
func WithRouter(r Router) ServerOption {
	return func(s *Server) {
		s.router = r
	}
}

// NewServer creates a new HTTP server with the global middleware stack installed.
func NewServer(cfg *config.Config, log *logger.Logger, opts ...ServerOption) *Server {
	s := &Server{
		config: cfg,
		logger: log.With("component", "http"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.router == nil {
		s.router = NewChiRouter()
	}

	// The limiter keys on the vendor, so it is applied inside authenticated groups.
	rateLimitMw, rateLimitStop := middleware.RateLimitWithStop(&cfg.RateLimit, s.logger)
	s.rateLimit = rateLimitMw
	s.cleanupFuncs = append(s.cleanupFuncs, rateLimitStop)

	loggerCfg := middleware.DefaultLoggerConfig()
	if !cfg.Log.SkipHealthLogs {
		loggerCfg.SkipPaths = nil
	}

	s.router.Use(
		middleware.Recovery(s.logger, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.Decompress(nil),
		middleware.BodyLimit(cfg.Server.MaxBodySize),
		middleware.Metrics(),
		middleware.LoggerWithConfig(s.logger, loggerCfg),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}

	return s
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// RateLimit returns the rate limiting middleware for authenticated route groups.
func (s *Server) RateLimit() Middleware {
	return s.rateLimit
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
