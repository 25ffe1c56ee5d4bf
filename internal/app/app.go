// Package app provides application lifecycle management and dependency injection.
package app

import (
	"context"
	"fmt"
	"net"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/service/credstore"
	"github.com/your-org/credguard/internal/service/kdf"
	"github.com/your-org/credguard/internal/service/metrics"
	"github.com/your-org/credguard/internal/service/token"
	"github.com/your-org/credguard/internal/service/verifier"
	httpTransport "github.com/your-org/credguard/internal/transport/http"
	"github.com/your-org/credguard/pkg/logger"
	"github.com/your-org/credguard/pkg/resilience/ratelimit"
)

// BuildInfo holds application build information.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// App represents the verifier service with all its dependencies.
type App struct {
	cfg *config.Config

	httpServer *httpTransport.Server

	deriver  *kdf.Deriver
	store    *credstore.Store
	verifier verifier.Verifier
	issuer   *token.Issuer

	rateLimiter *ratelimit.Limiter
	metrics     *metrics.Metrics

	buildInfo BuildInfo
}

// Option is a functional option for configuring the App.
type Option func(*App)

// WithBuildInfo sets the build information.
func WithBuildInfo(info BuildInfo) Option {
	return func(a *App) {
		a.buildInfo = info
	}
}

// WithMetrics overrides the metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// New creates a new App instance with the given configuration and options.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
		buildInfo: BuildInfo{
			Version:   "dev",
			BuildTime: "unknown",
			GitCommit: "unknown",
		},
	}

	for _, opt := range opts {
		opt(app)
	}

	return app, nil
}

// Initialize provisions credentials and builds the HTTP stack.
func (a *App) Initialize(ctx context.Context) error {
	var err error

	a.deriver, err = kdf.New(a.cfg.Verifier.KDF)
	if err != nil {
		return fmt.Errorf("failed to create key deriver: %w", err)
	}

	storeOpts := []credstore.Option{
		credstore.WithSwapHook(func(snap *credstore.Snapshot) {
			a.metrics.RecordSnapshotReload(true, snap.Len())
		}),
		credstore.WithReloadErrorHook(func(error) {
			a.metrics.RecordSnapshotReload(false, 0)
		}),
	}
	if a.cfg.Credentials.SeedsFile != "" {
		storeOpts = append(storeOpts, credstore.WithSeedsFile(a.cfg.Credentials.SeedsFile))
	}
	if a.cfg.Credentials.WatchDebounce > 0 {
		storeOpts = append(storeOpts, credstore.WithDebounce(a.cfg.Credentials.WatchDebounce))
	}

	a.store, err = credstore.New(a.deriver, a.cfg.Credentials.Seeds, storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to provision credentials: %w", err)
	}
	snap := a.store.Snapshot()
	logger.Info("credentials provisioned",
		logger.String("source", snap.Source()),
		logger.Int("records", snap.Len()),
		logger.Int("kdf_iterations", a.deriver.Params().Iterations),
	)

	if a.cfg.Credentials.Watch && a.cfg.Credentials.SeedsFile != "" {
		if err := a.store.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch seeds file: %w", err)
		}
	}

	a.verifier, err = verifier.New(verifier.Config{
		Mode:        a.cfg.Verifier.Mode,
		DummySecret: a.cfg.Verifier.DummySecret,
	}, a.store, a.deriver)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	if a.verifier.Mode() == verifier.ModeLegacy {
		logger.Warn("legacy verifier enabled: identity validity leaks through response latency")
	}

	a.issuer, err = token.NewIssuer(a.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	if a.cfg.RateLimit.Enabled {
		a.rateLimiter, err = ratelimit.NewLimiter(ctx, a.cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		logger.Info("rate limiter initialized",
			logger.String("rate", a.cfg.RateLimit.Rate),
			logger.String("store", a.cfg.RateLimit.Store),
		)
	}

	handler := httpTransport.NewHandler(a.verifier, a.issuer, a.store, a.buildInfo.Version,
		httpTransport.WithResponseFloor(a.cfg.Verifier.ResponseFloor),
		httpTransport.WithMaxBodyBytes(a.cfg.Server.HTTP.MaxBodyBytes),
		httpTransport.WithMetrics(a.metrics),
	)

	var serverOpts []httpTransport.ServerOption
	if a.rateLimiter != nil {
		serverOpts = append(serverOpts, httpTransport.WithRateLimiter(a.rateLimiter))
	}

	a.httpServer = httpTransport.NewServer(httpTransport.ServerConfig{
		HTTP:      a.cfg.Server.HTTP,
		Endpoints: a.cfg.Endpoints,
	}, handler, serverOpts...)

	return nil
}

// Start starts the HTTP server in the background.
func (a *App) Start() error {
	if a.httpServer == nil {
		return fmt.Errorf("application not initialized")
	}

	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("HTTP server error", logger.Err(err))
		}
	}()

	logger.Info("application started",
		logger.String("http_addr", a.cfg.Server.HTTP.Addr),
		logger.String("version", a.buildInfo.Version),
	)
	return nil
}

// Serve runs the HTTP server on ln until it is shut down.
func (a *App) Serve(ln net.Listener) error {
	if a.httpServer == nil {
		return fmt.Errorf("application not initialized")
	}
	return a.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down all application services.
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutting down application")

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown HTTP server", logger.Err(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("failed to stop credential watcher", logger.Err(err))
		}
	}

	logger.Info("application shutdown complete")
	return nil
}

// Store returns the credential store.
func (a *App) Store() *credstore.Store {
	return a.store
}

// Verifier returns the configured verifier.
func (a *App) Verifier() verifier.Verifier {
	return a.verifier
}
