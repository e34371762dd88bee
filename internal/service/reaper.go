package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/core"
	obserrors "github.com/target/mmk-autoapply/internal/observability/errors"
	"github.com/target/mmk-autoapply/internal/observability/metrics"
	"github.com/target/mmk-autoapply/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required
	Config  config.ReaperConfig   // Required; Interval must be positive
	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// ReaperService performs queue maintenance: executing tasks whose lease
// lapsed go back to the queue, and submission step logs past retention are
// deleted. Scheduling the passes is left to the caller.
type ReaperService struct {
	repo    core.ReaperRepository
	cfg     config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ReaperService{
		repo:    opts.Repo,
		cfg:     opts.Config,
		logger:  logger.With("component", "reaper_service"),
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// MustNewReaperService is NewReaperService that panics on invalid wiring.
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		//nolint:forbidigo // Must* constructor intentionally panics on invalid wiring
		panic(fmt.Errorf("failed to create ReaperService: %w", err))
	}
	return svc
}

// Interval is how often a scheduler should call RunOnce.
func (s *ReaperService) Interval() time.Duration { return s.cfg.Interval }

type maintenanceStep struct {
	label  string // used in errors
	metric string // reaper.* task tag
	run    func(context.Context) (int64, error)
}

// RunOnce runs every maintenance step once. A failing step does not stop the
// ones after it; the returned error joins all step failures and is
// context.Canceled when every failure was a cancellation.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := s.now()
	steps := []maintenanceStep{
		{label: "requeue expired leases", metric: "requeue_expired", run: s.requeueExpired},
		{label: "purge submission logs", metric: "purge_submission_logs", run: s.purgeLogs},
	}

	var (
		failures    []error
		onlyCancels = true
		affected    int64
	)
	for _, step := range steps {
		n, err := step.run(ctx)
		affected += n
		canceled := isCancellation(err)
		if canceled {
			metrics.EmitReaper(s.metrics, step.metric, n, nil)
		} else {
			metrics.EmitReaper(s.metrics, step.metric, n, err)
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", step.label, err))
			onlyCancels = onlyCancels && canceled
		}
	}

	err := errors.Join(failures...)
	s.emitPass(affected, err, s.now().Sub(start))

	switch {
	case err == nil:
		return nil
	case onlyCancels:
		return fmt.Errorf("%w: %w", context.Canceled, err)
	default:
		return fmt.Errorf("reaper pass: %w", err)
	}
}

// requeueExpired drains expired leases in batches. A short batch means the
// backlog is gone.
func (s *ReaperService) requeueExpired(ctx context.Context) (int64, error) {
	var total int64
	for {
		n, err := s.repo.RequeueExpired(ctx, s.cfg.BatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(s.cfg.BatchSize) {
			break
		}
		if err = ctx.Err(); err != nil {
			return total, err
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "requeued tasks with expired leases", "count", total)
	}
	return total, nil
}

// purgeLogs deletes step logs older than the retention window until a batch
// comes back empty.
func (s *ReaperService) purgeLogs(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.SubmissionLogMaxAge)
	var total int64
	for {
		n, err := s.repo.PurgeSubmissionLogs(ctx, cutoff, s.cfg.BatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		if err = ctx.Err(); err != nil {
			return total, err
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "purged submission logs", "count", total, "max_age", s.cfg.SubmissionLogMaxAge)
	}
	return total, nil
}

func (s *ReaperService) emitPass(affected int64, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"result": metrics.ResultSuccess}
	switch {
	case err != nil:
		tags["result"] = metrics.ResultError
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	case affected == 0:
		tags["result"] = metrics.ResultNoop
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
