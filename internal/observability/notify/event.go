// Package notify defines the payload and sink contract for terminal
// submission failure notifications.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// SubmissionFailurePayload describes an application that ended in failed.
type SubmissionFailurePayload struct {
	ApplicationID string
	UserID        string
	JobID         string
	JobTitle      string
	Company       string
	Source        string
	Attempts      int
	Reason        string
	ErrorClass    string
	Severity      string
	OccurredAt    time.Time
	Metadata      map[string]string
}

// Sink describes a destination capable of consuming failure notifications.
type Sink interface {
	SendSubmissionFailure(ctx context.Context, payload SubmissionFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload SubmissionFailurePayload) error

// SendSubmissionFailure implements the Sink interface.
func (f SinkFunc) SendSubmissionFailure(ctx context.Context, payload SubmissionFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// Retry calls fn up to retries+1 times with a linear backoff between calls.
func Retry(ctx context.Context, retries int, fn func() error) error {
	attempts := max(retries, 0) + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
