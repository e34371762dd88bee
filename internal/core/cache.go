// Package core defines the ports of the auto-apply orchestrator and the small
// pieces of business logic that sit directly on top of them.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DeleteIfEquals removes key only while it still holds value.
	// Returns true if the key was deleted.
	DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ErrGuardHeld is returned when another caller holds the in-flight guard for a pair.
var ErrGuardHeld = errors.New("in-flight guard held by another request")

// InFlightGuardConfig holds configuration for the admission guard.
type InFlightGuardConfig struct {
	TTL    time.Duration
	Prefix string
}

// DefaultInFlightGuardConfig returns an InFlightGuardConfig with sensible defaults.
func DefaultInFlightGuardConfig() InFlightGuardConfig {
	return InFlightGuardConfig{
		TTL:    10 * time.Second,
		Prefix: "autoapply:inflight:",
	}
}

// InFlightGuard is a short-lived distributed lock around apply admission for a
// (user, job) pair. It only collapses duplicate requests across replicas; the
// task table's unique index stays authoritative.
type InFlightGuard struct {
	cache CacheRepository
	cfg   InFlightGuardConfig
}

// NewInFlightGuard creates a guard. A nil cache yields a guard that always admits.
func NewInFlightGuard(cache CacheRepository, cfg InFlightGuardConfig) *InFlightGuard {
	def := DefaultInFlightGuardConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	return &InFlightGuard{cache: cache, cfg: cfg}
}

// Acquire takes the guard for the pair. The returned release func is always non-nil.
func (g *InFlightGuard) Acquire(ctx context.Context, userID, jobID string) (func(), error) {
	return g.AcquireKey(ctx, userID+":"+jobID)
}

// AcquireKey takes the guard for an arbitrary name under the configured prefix.
func (g *InFlightGuard) AcquireKey(ctx context.Context, name string) (func(), error) {
	noop := func() {}
	if g == nil || g.cache == nil {
		return noop, nil
	}

	key := g.cfg.Prefix + name
	token := []byte(uuid.NewString())
	ok, err := g.cache.SetIfNotExists(ctx, key, token, g.cfg.TTL)
	if err != nil {
		return noop, err
	}
	if !ok {
		return noop, ErrGuardHeld
	}

	return func() {
		// Release must run even when the request context is already done. A guard
		// that outlived its TTL may belong to someone else by now.
		_, _ = g.cache.DeleteIfEquals(context.WithoutCancel(ctx), key, token)
	}, nil
}
