package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/target/mmk-autoapply/internal/observability/notify"
)

func TestServiceNotifySubmissionFailure(t *testing.T) {
	var mu sync.Mutex
	var received []notify.SubmissionFailurePayload
	capture := notify.SinkFunc(func(_ context.Context, payload notify.SubmissionFailurePayload) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, payload)
		return nil
	})
	svc := NewService(Options{
		Sinks: []SinkRegistration{{Name: "a", Sink: capture}, {Name: "b", Sink: capture}, {Name: "nil"}},
	})

	svc.NotifySubmissionFailure(context.Background(), notify.SubmissionFailurePayload{ApplicationID: "app-1"})

	if len(received) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected severity to default to critical, got %s", received[0].Severity)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
	var nilSvc *Service
	nilSvc.NotifySubmissionFailure(context.Background(), notify.SubmissionFailurePayload{})
}

func TestServiceLogsErrors(t *testing.T) {
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Name: "fail",
			Sink: notify.SinkFunc(func(context.Context, notify.SubmissionFailurePayload) error {
				return errors.New("boom")
			}),
		}},
	})

	svc.NotifySubmissionFailure(context.Background(), notify.SubmissionFailurePayload{ApplicationID: "app-1"})
}

func TestServiceDeliversAfterCallerCanceled(t *testing.T) {
	var gotErr error
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Name: "capture",
			Sink: notify.SinkFunc(func(ctx context.Context, _ notify.SubmissionFailurePayload) error {
				gotErr = ctx.Err()
				return nil
			}),
		}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.NotifySubmissionFailure(ctx, notify.SubmissionFailurePayload{ApplicationID: "app-1"})
	if gotErr != nil {
		t.Fatalf("expected live context for sinks, got %v", gotErr)
	}
}
