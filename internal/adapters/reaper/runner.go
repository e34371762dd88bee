// Package reaper schedules the queue maintenance pass.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/target/mmk-autoapply/internal/core"
)

// PassRunner is the maintenance pass the runner schedules.
type PassRunner interface {
	RunOnce(ctx context.Context) error
	Interval() time.Duration
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Reaper PassRunner // Required
	// Guard, when set, elects one replica per tick. Replicas that lose the
	// race skip the pass.
	Guard *core.InFlightGuard
	// DisableJitter starts the first pass immediately instead of after a
	// random delay of up to a tenth of the interval.
	DisableJitter bool
	Logger        *slog.Logger
}

// Runner ticks the reaper until its context ends.
type Runner struct {
	reaper PassRunner
	guard  *core.InFlightGuard
	jitter bool
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Reaper == nil {
		return nil, errors.New("reaper is required")
	}
	if opts.Reaper.Interval() <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		reaper: opts.Reaper,
		guard:  opts.Guard,
		jitter: !opts.DisableJitter,
		logger: logger.With("component", "reaper_runner"),
	}, nil
}

// Run performs a pass right away (after a small jitter), then once per
// interval. It returns nil when ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.reaper.Interval()
	r.logger.InfoContext(ctx, "starting reaper runner", "interval", interval)

	// Replicas started together should not hit the database in lockstep.
	if r.jitter && !sleep(ctx, rand.N(interval/10+1)) {
		return r.stopped(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.tick(ctx)
		select {
		case <-ctx.Done():
			return r.stopped(ctx)
		case <-ticker.C:
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	release, err := r.guard.AcquireKey(ctx, "pass")
	switch {
	case errors.Is(err, core.ErrGuardHeld):
		r.logger.DebugContext(ctx, "reaper pass running on another replica")
		return
	case err != nil:
		// Without Redis we still run; the pass is idempotent.
		r.logger.WarnContext(ctx, "reaper guard unavailable", "error", err)
	}
	defer release()

	if err = r.reaper.RunOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.logger.DebugContext(ctx, "reaper pass interrupted", "error", err)
			return
		}
		r.logger.ErrorContext(ctx, "reaper pass failed", "error", err)
	}
}

func (r *Runner) stopped(ctx context.Context) error {
	r.logger.InfoContext(ctx, "reaper runner stopping", "reason", context.Cause(ctx))
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
