package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{60, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestRetryPolicy_JitterStaysInRange(t *testing.T) {
	p := RetryPolicy{BaseDelay: 10 * time.Second, MaxDelay: time.Minute, Jitter: 0.5}
	for range 100 {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 15*time.Second)
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.True(t, p.ShouldRetry(1))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
	assert.False(t, RetryPolicy{}.ShouldRetry(DefaultMaxAttempts))
}

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Minute, MaxDelay: time.Second, Jitter: 3}.Normalized()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, time.Minute, p.MaxDelay)
	assert.InDelta(t, 1.0, p.Jitter, 0.0001)
}

func TestLeaseSeconds(t *testing.T) {
	s, err := LeaseSeconds(90 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90, s)

	s, err = LeaseSeconds(200 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, s)

	_, err = LeaseSeconds(0)
	require.ErrorIs(t, err, ErrInvalidLease)
}
