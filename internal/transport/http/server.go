package http

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/service/metrics"
	"github.com/your-org/credguard/pkg/logger"
	"github.com/your-org/credguard/pkg/resilience/ratelimit"
)

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	handler     *Handler
	rateLimiter *ratelimit.Limiter
	cfg         config.HTTPServerConfig
	endpoints   config.EndpointsConfig
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithRateLimiter sets the rate limiter for the server.
func WithRateLimiter(limiter *ratelimit.Limiter) ServerOption {
	return func(s *Server) {
		s.rateLimiter = limiter
	}
}

// ServerConfig holds all configuration needed for the HTTP server.
type ServerConfig struct {
	HTTP      config.HTTPServerConfig
	Endpoints config.EndpointsConfig
}

// NewServer creates a new HTTP server.
func NewServer(cfg ServerConfig, handler *Handler, opts ...ServerOption) *Server {
	server := &Server{
		handler:   handler,
		cfg:       cfg.HTTP,
		endpoints: cfg.Endpoints,
	}

	for _, opt := range opts {
		opt(server)
	}

	server.httpServer = &http.Server{
		Addr:           cfg.HTTP.Addr,
		Handler:        server.Router(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	return server
}

// Router builds the route tree with the middleware stack.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	// Middleware stack (order matters)
	router.Use(middleware.RequestID)
	if s.cfg.TrustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(middleware.Recoverer)
	router.Use(logger.CorrelationIDMiddleware)
	router.Use(metrics.Middleware(s.handler.metrics))
	router.Use(requestLogger)
	if s.cfg.RequestTimeout > 0 {
		router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	s.registerRoutes(router, s.handler)
	return router
}

// registerRoutes registers all HTTP routes with configurable endpoints.
func (s *Server) registerRoutes(r chi.Router, h *Handler) {
	ep := s.endpoints

	if ep.Auth != "" {
		if s.rateLimiter != nil {
			r.With(s.rateLimiter.Handler).Post(ep.Auth, h.Auth)
		} else {
			r.Post(ep.Auth, h.Auth)
		}
	}

	// Health endpoints, also under the common z variants
	if ep.Health != "" {
		r.Get(ep.Health, h.Health)
		r.Get(ep.Health+"z", h.Health)
	}
	if ep.Ready != "" {
		r.Get(ep.Ready, h.Ready)
		r.Get(ep.Ready+"z", h.Ready)
	}
	if ep.Live != "" {
		r.Get(ep.Live, h.Live)
		r.Get(ep.Live+"z", h.Live)
	}

	if ep.Metrics != "" {
		r.Handle(ep.Metrics, promhttp.Handler())
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logger.Info("starting HTTP server",
		logger.String("addr", s.cfg.Addr),
		logger.String("mode", s.handler.verifier.Mode()),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down HTTP server")

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Close(); err != nil {
			logger.Warn("failed to close rate limiter", logger.Err(err))
		}
	}

	return s.httpServer.Shutdown(ctx)
}
