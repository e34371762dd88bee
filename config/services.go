package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service roles.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the apply runner worker pool.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs lease recovery and log retention.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if strings.TrimSpace(servicesStr) == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

const (
	minRunnerConcurrency = 1
	maxRunnerConcurrency = 64
	minSubmitTimeout     = 5 * time.Second
	maxSubmitTimeout     = 10 * time.Minute
	minMaxAttempts       = 1
	maxMaxAttempts       = 10
)

// ApplyRunnerConfig contains worker pool and retry configuration.
type ApplyRunnerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"APPLY_RUNNER_CONCURRENCY" envDefault:"4"`

	// TaskLease is how long a worker holds a task before the reaper may recover it.
	TaskLease time.Duration `env:"APPLY_RUNNER_TASK_LEASE" envDefault:"5m"`

	// SubmitTimeout bounds a single Submit call.
	SubmitTimeout time.Duration `env:"APPLY_RUNNER_SUBMIT_TIMEOUT" envDefault:"60s"`

	// PollInterval is the fallback dequeue poll when no notification arrives.
	PollInterval time.Duration `env:"APPLY_RUNNER_POLL_INTERVAL" envDefault:"2s"`

	MaxAttempts int           `env:"APPLY_MAX_ATTEMPTS"  envDefault:"3"`
	BaseDelay   time.Duration `env:"APPLY_BASE_DELAY"    envDefault:"30s"`
	MaxDelay    time.Duration `env:"APPLY_MAX_DELAY"     envDefault:"10m"`
	Jitter      float64       `env:"APPLY_RETRY_JITTER"  envDefault:"0.1"`

	// InFlightGuardTTL is the lifetime of the Redis duplicate-click lock.
	InFlightGuardTTL time.Duration `env:"APPLY_INFLIGHT_GUARD_TTL" envDefault:"10s"`
}

// Sanitize applies guardrails to apply runner configuration values.
func (a *ApplyRunnerConfig) Sanitize() {
	a.Concurrency = clampInt(a.Concurrency, minRunnerConcurrency, maxRunnerConcurrency)
	a.SubmitTimeout = clampDuration(a.SubmitTimeout, minSubmitTimeout, maxSubmitTimeout)
	a.MaxAttempts = clampInt(a.MaxAttempts, minMaxAttempts, maxMaxAttempts)

	// The lease must outlive a submission so the reaper never races a live worker.
	if a.TaskLease < 2*a.SubmitTimeout {
		a.TaskLease = 2 * a.SubmitTimeout
	}
	if a.PollInterval < 100*time.Millisecond {
		a.PollInterval = 100 * time.Millisecond
	}
	if a.BaseDelay <= 0 {
		a.BaseDelay = 30 * time.Second
	}
	if a.MaxDelay < a.BaseDelay {
		a.MaxDelay = a.BaseDelay
	}
	if a.Jitter < 0 {
		a.Jitter = 0
	}
	if a.Jitter > 1 {
		a.Jitter = 1
	}
	if a.InFlightGuardTTL <= 0 {
		a.InFlightGuardTTL = 10 * time.Second
	}
}

// ReaperConfig contains lease recovery and retention configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// SubmissionLogMaxAge is how long submission step logs are retained.
	SubmissionLogMaxAge time.Duration `env:"REAPER_SUBMISSION_LOG_MAX_AGE" envDefault:"2160h"` // 90 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.SubmissionLogMaxAge < 24*time.Hour {
		r.SubmissionLogMaxAge = 24 * time.Hour
	}
	r.BatchSize = clampInt(r.BatchSize, 1, 10000)
}

// SubmittersConfig locates the submitter registry file and browser settings.
type SubmittersConfig struct {
	// File is the YAML registry of job sources.
	File string `env:"SUBMITTERS_FILE" envDefault:"config/submitters.yaml"`

	// BrowserEnabled controls whether the playwright submitter is registered.
	BrowserEnabled bool `env:"SUBMITTERS_BROWSER_ENABLED" envDefault:"false"`
	// BrowserHeadless runs chromium without a window.
	BrowserHeadless bool `env:"SUBMITTERS_BROWSER_HEADLESS" envDefault:"true"`
}

// Sanitize trims the registry path.
func (s *SubmittersConfig) Sanitize() {
	s.File = strings.TrimSpace(s.File)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
