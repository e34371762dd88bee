package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/adapters/applyrunner"
	"github.com/target/mmk-autoapply/internal/adapters/reaper"
	"github.com/target/mmk-autoapply/internal/adapters/submitters"
	"github.com/target/mmk-autoapply/internal/adapters/submitters/browser"
	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/data"
	"github.com/target/mmk-autoapply/internal/service"
)

// SubmitterSet is the resolved submitter registry plus the browser it may own.
type SubmitterSet struct {
	Registry *submitters.Registry
	launcher *browser.Launcher
}

// Close shuts down the shared browser, if one was started.
func (s *SubmitterSet) Close() error {
	if s == nil || s.launcher == nil {
		return nil
	}
	return s.launcher.Close()
}

// BuildSubmitters loads the registry file and builds every declared submitter.
// Relative schema paths resolve against the file's directory.
func BuildSubmitters(cfg config.SubmittersConfig, logger *slog.Logger) (*SubmitterSet, error) {
	file, err := submitters.LoadFile(cfg.File)
	if err != nil {
		return nil, err
	}

	set := &SubmitterSet{}
	opts := submitters.BuildOptions{
		BaseDir: filepath.Dir(cfg.File),
		Logger:  logger,
	}
	if cfg.BrowserEnabled {
		set.launcher = browser.NewLauncher(browser.LauncherOptions{
			Headless: cfg.BrowserHeadless,
			Logger:   logger,
		})
		opts.Pages = set.launcher
	}

	registry, err := submitters.Build(file, opts)
	if err != nil {
		_ = set.Close()
		return nil, fmt.Errorf("build submitters: %w", err)
	}
	set.Registry = registry
	return set, nil
}

// ApplyRunnerConfig contains dependencies for the worker pool.
type ApplyRunnerConfig struct {
	Config     config.ApplyRunnerConfig
	Services   ServiceContainer
	Submitters *submitters.Registry
	Logger     *slog.Logger
}

// RunApplyRunner runs the submission workers until ctx is canceled.
func RunApplyRunner(ctx context.Context, cfg ApplyRunnerConfig) error {
	store := cfg.Services.Store
	metrics := cfg.Services.Observability.metricsSink()

	executor, err := applyrunner.NewExecutor(applyrunner.ExecutorOptions{
		Applications:  store.Applications,
		Jobs:          store.Jobs,
		Resumes:       store.Resumes,
		Submitters:    cfg.Submitters,
		Logs:          store.Logs,
		SubmitTimeout: cfg.Config.SubmitTimeout,
		Logger:        cfg.Logger,
		Metrics:       metrics,
	})
	if err != nil {
		return fmt.Errorf("create submission executor: %w", err)
	}

	runner, err := applyrunner.NewRunner(applyrunner.RunnerOptions{
		Queue:         cfg.Services.Queue,
		Executor:      executor,
		Concurrency:   cfg.Config.Concurrency,
		Lease:         cfg.Config.TaskLease,
		SubmitTimeout: cfg.Config.SubmitTimeout,
		Logger:        cfg.Logger,
		Metrics:       metrics,
	})
	if err != nil {
		return fmt.Errorf("create apply runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains dependencies for the reaper.
type ReaperConfig struct {
	Config   config.ReaperConfig
	Services ServiceContainer
	// RedisClient, when set, limits each maintenance pass to one replica.
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// RunReaper runs lease recovery and log retention until ctx is canceled.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    cfg.Services.Store.Reaper,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Services.Observability.metricsSink(),
	})
	if err != nil {
		return fmt.Errorf("create reaper service: %w", err)
	}

	var guard *core.InFlightGuard
	if cfg.RedisClient != nil {
		// Expire before the next tick so a crashed holder never skips two passes.
		guard = core.NewInFlightGuard(data.NewRedisCacheRepo(cfg.RedisClient), core.InFlightGuardConfig{
			TTL:    cfg.Config.Interval * 9 / 10,
			Prefix: "autoapply:reaper:",
		})
	}

	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Reaper: svc,
		Guard:  guard,
		Logger: cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}
