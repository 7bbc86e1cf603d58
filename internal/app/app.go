// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"apirelay/internal/api"
	"apirelay/internal/cache"
	"apirelay/internal/config"
	"apirelay/internal/fetch"
	"apirelay/internal/logging"
	"apirelay/internal/probe"
	"apirelay/internal/ratelimit"
	"apirelay/internal/registry"
	"apirelay/internal/relay"
)

// App holds the shared, long-lived services of the relay. It is built
// once at startup and handed to the commands that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *registry.Registry
	fetcher  *fetch.Client
	cache    *cache.Store
	resolver *relay.Resolver
	prober   *probe.Prober
	server   *api.Server

	closeOnce sync.Once
}

// New wires every service from the validated configuration. It fails fast
// when a critical service cannot be initialized.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("initializing relay services")

	var seed registry.Store
	if cfg.Registry.SeedFile != "" {
		seed = registry.NewSeedStore(cfg.Registry.SeedFile)
	}
	reg := registry.New(
		registry.NewFileStore(cfg.Registry.StoreFile),
		seed,
		logger,
		registry.WithDefaultKind(registry.ParseKind(cfg.Relay.DefaultType, registry.DefaultKind)),
	)

	fetcher := fetch.NewClient(fetch.Options{
		Timeout:   cfg.FetchTimeout(),
		UserAgent: cfg.HTTP.UserAgent,
	}, logger)

	store, err := cache.New(cache.Config{BaseDir: cfg.Cache.Dir}, logger)
	if err != nil {
		fetcher.Close()
		return nil, fmt.Errorf("initialize cache: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Probe.PerOriginRPS,
		DefaultBurst: cfg.Probe.PerOriginBurst,
	})

	resolver := relay.New(fetcher, store, cfg.Relay, logger)
	prober := probe.New(fetcher, limiter, logger)
	server := api.NewServer(reg, resolver, prober, cfg, logger)

	logger.Info("relay services initialized",
		zap.Int("endpoints", reg.Len()),
		zap.String("cache_dir", cfg.Cache.Dir),
	)
	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		fetcher:  fetcher,
		cache:    store,
		resolver: resolver,
		prober:   prober,
		server:   server,
	}, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Registry exposes the endpoint catalog.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Resolver exposes the trigger resolution pipeline.
func (a *App) Resolver() *relay.Resolver {
	return a.resolver
}

// Prober exposes the availability prober.
func (a *App) Prober() *probe.Prober {
	return a.prober
}

// Server exposes the HTTP surface.
func (a *App) Server() *api.Server {
	return a.server
}

// Close releases shared resources. Safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.logger.Info("shutting down relay services")
		a.fetcher.Close()
		// Sync can fail on stderr sinks; nothing useful to do with the error.
		_ = a.logger.Sync()
	})
}
