package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/data"
	"github.com/target/mmk-autoapply/internal/domain/task"
	"github.com/target/mmk-autoapply/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Store         *Store
	Queue         *service.TaskQueueService
	Applications  *service.ApplicationService
	Auth          *service.AuthService
	Observability ObservabilityContainer
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	Store       *Store
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the task queue and application facade on top of the
// record store. Auth is only built when the HTTP role is enabled.
func NewServices(ctx context.Context, deps ServiceDeps) (ServiceContainer, error) {
	if deps.Config == nil || deps.Store == nil {
		return ServiceContainer{}, errors.New("config and store are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)

	queue, err := service.NewTaskQueueService(service.TaskQueueServiceOptions{
		Tasks:        deps.Store.Tasks,
		Applications: deps.Store.Applications,
		Jobs:         deps.Store.Jobs,
		Retry: task.RetryPolicy{
			MaxAttempts: cfg.ApplyRunner.MaxAttempts,
			BaseDelay:   cfg.ApplyRunner.BaseDelay,
			MaxDelay:    cfg.ApplyRunner.MaxDelay,
			Jitter:      cfg.ApplyRunner.Jitter,
		},
		Lease:           cfg.ApplyRunner.TaskLease,
		PollInterval:    cfg.ApplyRunner.PollInterval,
		Logger:          logger,
		Metrics:         observability.metricsSink(),
		FailureNotifier: observability.FailureNotifier,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create task queue: %w", err)
	}

	applications, err := service.NewApplicationService(service.ApplicationServiceOptions{
		Applications: deps.Store.Applications,
		Queue:        queue,
		Jobs:         deps.Store.Jobs,
		Resumes:      deps.Store.Resumes,
		Logs:         deps.Store.Logs,
		Guard:        newInFlightGuard(deps.RedisClient, cfg.ApplyRunner),
		Logger:       logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create application service: %w", err)
	}

	var auth *service.AuthService
	if cfg.IsHTTPServerEnabled() {
		auth, err = BuildAuthService(ctx, AuthConfig{
			Auth:        cfg.Auth,
			RedisClient: deps.RedisClient,
			IsDev:       cfg.IsDev,
			Logger:      logger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("build auth service: %w", err)
		}
	}

	return ServiceContainer{
		Store:         deps.Store,
		Queue:         queue,
		Applications:  applications,
		Auth:          auth,
		Observability: observability,
	}, nil
}

// newInFlightGuard returns a Redis-backed guard, or nil when Redis is absent
// and admission relies on the store's uniqueness alone.
func newInFlightGuard(client redis.UniversalClient, cfg config.ApplyRunnerConfig) *core.InFlightGuard {
	if client == nil {
		return nil
	}
	return core.NewInFlightGuard(data.NewRedisCacheRepo(client), core.InFlightGuardConfig{
		TTL: cfg.InFlightGuardTTL,
	})
}
