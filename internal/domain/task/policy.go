// Package task holds queue policies shared by the task repositories and the queue service.
package task

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts is the number of submission attempts before a task is failed.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the backoff before the second attempt.
	DefaultBaseDelay = 30 * time.Second
	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 10 * time.Minute
)

// ErrInvalidLease indicates a non-positive lease duration.
var ErrInvalidLease = errors.New("lease must be positive")

// RetryPolicy decides how many attempts a task gets and how long it waits between them.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction (0..1) of the computed delay that is randomised.
	Jitter float64
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Normalized fills zero fields with defaults.
func (p RetryPolicy) Normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Delay returns the wait before the next attempt after `attempts` failed attempts.
// delay(n) = min(BaseDelay * 2^(n-1), MaxDelay).
func (p RetryPolicy) Delay(attempts int) time.Duration {
	p = p.Normalized()
	if attempts < 1 {
		attempts = 1
	}
	factor := math.Pow(2, float64(attempts-1))
	d := time.Duration(float64(p.BaseDelay) * factor)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = d - time.Duration(spread) + time.Duration(rand.Float64()*2*spread)
	}
	return d
}

// ShouldRetry reports whether another attempt is allowed after `attempts` attempts.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.Normalized().MaxAttempts
}

// LeaseSeconds converts a lease duration into whole seconds, never below one.
func LeaseSeconds(d time.Duration) (int, error) {
	if d <= 0 {
		return 0, ErrInvalidLease
	}
	seconds := int64(d / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if seconds > math.MaxInt32 {
		seconds = math.MaxInt32
	}
	return int(seconds), nil
}
