package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-autoapply/config"
)

// backgroundService describes a startable role.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	Submitters  *SubmitterSet
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) ([]backgroundService, error) {
	var services []backgroundService

	if cfg.Config.IsHTTPServerEnabled() {
		server, err := NewHTTPServer(HTTPServerConfig{
			Config:      cfg.Config.HTTP,
			Services:    cfg.Services,
			RedisClient: cfg.RedisClient,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build http server: %w", err)
		}
		services = append(services, backgroundService{
			mode: config.ServiceModeHTTP,
			name: "http server",
			start: func(ctx context.Context) error {
				return ServeHTTP(ctx, server, cfg.Config.HTTP.ShutdownTimeout, logger)
			},
		})
	}

	if cfg.Config.IsWorkerEnabled() {
		if cfg.Submitters == nil || cfg.Submitters.Registry == nil {
			return nil, errors.New("worker role requires a submitter registry")
		}
		services = append(services, backgroundService{
			mode: config.ServiceModeWorker,
			name: "apply runner",
			start: func(ctx context.Context) error {
				return RunApplyRunner(ctx, ApplyRunnerConfig{
					Config:     cfg.Config.ApplyRunner,
					Services:   cfg.Services,
					Submitters: cfg.Submitters.Registry,
					Logger:     logger,
				})
			},
		})
	}

	if cfg.Config.IsReaperEnabled() {
		services = append(services, backgroundService{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					Config:      cfg.Config.Reaper,
					Services:    cfg.Services,
					RedisClient: cfg.RedisClient,
					Logger:      logger,
				})
			},
		})
	}

	return services, nil
}

// RunServices starts every enabled role and blocks until ctx is canceled or
// one of them fails; a failure cancels the others. Returns nil on a clean
// shutdown.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	services, err := buildBackgroundServices(cfg, logger)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		logger.InfoContext(ctx, "background service started", "service", svc.name, "mode", svc.mode)
		group.Go(func() error {
			if err := svc.start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.Info(svc.name + " stopped")
			return nil
		})
	}

	err = group.Wait()
	if cfg.Services.Queue != nil {
		cfg.Services.Queue.Stop()
	}
	return err
}
