package data

import (
	"sync"
	"time"
)

// TimeProvider supplies the repositories' notion of now. Lease deadlines,
// run_at and updated_at stamps are all computed from it rather than from the
// database clock so tests can drive expiry deterministically.
type TimeProvider interface {
	Now() time.Time
}

// TimeFunc adapts a plain function to TimeProvider.
type TimeFunc func() time.Time

// Now implements TimeProvider.
func (f TimeFunc) Now() time.Time { return f() }

// SystemTime reads the wall clock.
var SystemTime TimeProvider = TimeFunc(time.Now)

// FixedTimeProvider is a manually advanced clock, safe for concurrent use.
type FixedTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedTimeProvider returns a clock stopped at t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{now: t}
}

func (f *FixedTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AddTime moves the clock forward by d.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
