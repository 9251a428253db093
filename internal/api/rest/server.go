package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/propguard/security-analytics-backend/internal/infrastructure/config"
)

// Server is the HTTP front of the analytics engine.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer assembles the router and middleware chain around the handler.
func NewServer(cfg *config.Config, handler *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handler.handleHealth)
	mux.HandleFunc("GET /ready", handler.handleHealth)

	v1 := http.NewServeMux()
	v1.HandleFunc("GET /security/overview", handler.handleGetOverview)
	v1.HandleFunc("GET /security/timeline", handler.handleGetTimeline)
	v1.HandleFunc("GET /security/metrics", handler.handleGetMetrics)
	v1.HandleFunc("GET /security/recommendations", handler.handleGetRecommendations)
	v1.HandleFunc("POST /security/events", handler.handleIngestEvents)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", v1))

	limiter := newIPRateLimiter(
		cfg.Server.RateLimit.RequestsPerSecond,
		cfg.Server.RateLimit.BurstSize,
	)

	middlewares := []Middleware{
		requestIDMiddleware,
		tracingMiddleware(),
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
		rateLimitMiddleware(limiter),
		timeoutMiddleware(cfg.Server.WriteTimeout),
	}

	var h http.Handler = mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      h,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  2 * time.Minute,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"addr", s.httpServer.Addr,
		"environment", s.cfg.Environment,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the assembled handler chain, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
