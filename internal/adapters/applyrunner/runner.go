// Package applyrunner runs the worker pool that drains the automation task
// queue and executes application submissions.
package applyrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/observability/metrics"
	"github.com/target/mmk-autoapply/internal/observability/statsd"
	"github.com/target/mmk-autoapply/internal/service"
)

const (
	defaultLease         = 5 * time.Minute
	reserveErrorBackoff  = time.Second
	reportGraceAfterWork = 10 * time.Second
)

// Queue is the part of the task queue a worker needs.
type Queue interface {
	Dequeue(ctx context.Context) (*model.AutomationTask, error)
	Heartbeat(ctx context.Context, taskID string) (bool, error)
	ReportAttempt(ctx context.Context, t *model.AutomationTask, outcome model.SubmissionOutcome) (*service.ReportResult, error)
}

// TaskExecutor executes one attempt of a reserved task.
type TaskExecutor interface {
	Execute(ctx context.Context, t *model.AutomationTask) model.SubmissionOutcome
}

// ExecutorFunc adapts a function to TaskExecutor.
type ExecutorFunc func(ctx context.Context, t *model.AutomationTask) model.SubmissionOutcome

// Execute implements TaskExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, t *model.AutomationTask) model.SubmissionOutcome {
	return f(ctx, t)
}

// RunnerOptions configures the worker pool.
type RunnerOptions struct {
	Queue    Queue        // Required
	Executor TaskExecutor // Required

	Concurrency   int           // number of workers; defaults to 1
	Lease         time.Duration // task lease; heartbeats run at half of it. Defaults to 5m
	SubmitTimeout time.Duration // bounds a detached attempt together with the lease
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// Runner pulls tasks from the queue and executes them with a fixed number of workers.
type Runner struct {
	queue         Queue
	executor      TaskExecutor
	workers       int
	lease         time.Duration
	submitTimeout time.Duration
	logger        *slog.Logger
	metrics       statsd.Sink
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner validates options and constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	lease := opts.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = defaultSubmitTimeout
	}

	return &Runner{
		queue:         opts.Queue,
		executor:      opts.Executor,
		workers:       workers,
		lease:         lease,
		submitTimeout: submitTimeout,
		logger:        resolveLogger(opts.Logger).With("component", "apply_runner"),
		metrics:       opts.Metrics,
	}, nil
}

// Run starts the workers and blocks until ctx is canceled and every attempt
// already in progress has been reported. Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting apply runner",
		"workers", r.workers, "lease", r.lease, "submit_timeout", r.submitTimeout)

	group, gctx := errgroup.WithContext(ctx)
	for i := range r.workers {
		group.Go(func() error { return r.workerLoop(gctx, i) })
	}

	err := group.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		r.logger.InfoContext(ctx, "apply runner stopped")
		return nil
	}
	return err
}

func (r *Runner) workerLoop(ctx context.Context, worker int) error {
	logger := r.logger.With("worker", worker)
	for ctx.Err() == nil {
		t, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.ErrorContext(ctx, "failed to reserve next task", "error", err)
			if !sleepCtx(ctx, reserveErrorBackoff) {
				return nil
			}
			continue
		}
		r.process(ctx, t)
	}
	return nil
}

// process executes and reports one attempt. The attempt is detached from the
// pool's cancellation so a shutdown never abandons a submission halfway; it
// is bounded by the lease instead.
func (r *Runner) process(ctx context.Context, t *model.AutomationTask) {
	budget := r.lease
	if floor := r.submitTimeout + reportGraceAfterWork; budget < floor {
		budget = floor
	}
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	defer cancel()

	stopHB := r.startHeartbeat(workCtx, t, cancel)
	outcome := r.executor.Execute(workCtx, t)
	stopHB()

	// A lost lease cancels workCtx; the report still needs to reach the queue.
	reportCtx, cancelReport := context.WithTimeout(context.WithoutCancel(ctx), reportGraceAfterWork)
	defer cancelReport()
	res, err := r.queue.ReportAttempt(reportCtx, t, outcome)
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		r.logger.WarnContext(ctx, "outcome discarded, task lease was recovered by another worker",
			"task_id", t.ID, "application_id", t.ApplicationID, "attempt", t.Attempts, "outcome", outcome.Kind)
		r.emitReport(metrics.ResultNoop, err)
	case err != nil:
		r.logger.ErrorContext(ctx, "failed to report attempt",
			"task_id", t.ID, "application_id", t.ApplicationID, "outcome", outcome.Kind, "error", err)
		r.emitReport(metrics.ResultError, err)
	default:
		r.logger.DebugContext(ctx, "attempt reported",
			"task_id", t.ID, "outcome", outcome.Kind, "requeued", res.Requeued, "exhausted", res.Exhausted)
		r.emitReport(metrics.ResultSuccess, nil)
	}
}

// startHeartbeat extends the task lease at half the lease period until the
// returned stop function is called. A lost lease cancels the attempt so the
// worker that recovered the task is the only one submitting.
func (r *Runner) startHeartbeat(ctx context.Context, t *model.AutomationTask, lost context.CancelFunc) func() {
	interval := r.lease / 2
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ok, err := r.queue.Heartbeat(ctx, t.ID)
				if err != nil {
					r.logger.ErrorContext(ctx, "heartbeat failed", "task_id", t.ID, "error", err)
					continue
				}
				if !ok {
					r.logger.WarnContext(ctx, "heartbeat not applied, lease lost", "task_id", t.ID)
					lost()
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (r *Runner) emitReport(result string, err error) {
	metrics.EmitQueueTransition(r.metrics, metrics.QueueMetric{Transition: "report", Result: result, Err: err})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
