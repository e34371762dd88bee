package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-autoapply/config"
)

// App owns every long-lived resource of one process.
type App struct {
	Config     *config.AppConfig
	Logger     *slog.Logger
	Store      *Store
	Redis      redis.UniversalClient
	Services   ServiceContainer
	Submitters *SubmitterSet
}

// NewApp connects the store and Redis, wires services, and builds the
// submitter registry when the worker role is enabled. Callers must Close
// the result.
func NewApp(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if err := ValidateServiceConfig(cfg); err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app.Store = store

	if cfg.Redis.Enabled() {
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			// Redis only backs the in-flight guard unless sessions live there.
			if cfg.Auth.Mode == config.AuthModeSession {
				_ = app.Close()
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			logger.Warn("redis unavailable; in-flight guard disabled", "error", err)
		} else {
			app.Redis = client
		}
	}

	services, err := NewServices(ctx, ServiceDeps{
		Config:      cfg,
		Store:       store,
		RedisClient: app.Redis,
		Logger:      logger,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Services = services

	if cfg.IsWorkerEnabled() {
		set, err := BuildSubmitters(cfg.Submitters, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Submitters = set
	}

	return app, nil
}

// Run starts the enabled roles and blocks until ctx is canceled or a role fails.
func (a *App) Run(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "services enabled", "services", GetEnabledServices(a.Config))
	return RunServices(ctx, &ServiceOrchestrationConfig{
		Config:      a.Config,
		Services:    a.Services,
		Submitters:  a.Submitters,
		RedisClient: a.Redis,
		Logger:      a.Logger,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	if err := a.Submitters.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close submitters: %w", err))
	}
	if err := a.Services.Observability.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
