package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/target/mmk-autoapply/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#autoapply",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.SubmissionFailurePayload{
		ApplicationID: "app-1",
		JobTitle:      "Backend Engineer",
		Company:       "Acme",
		Source:        "greenhouse",
		Attempts:      3,
		Reason:        "submission failed after 3 attempts",
		ErrorClass:    "transient",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#autoapply" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	for _, want := range []string{"Auto-apply failed", "app-1", "Backend Engineer at Acme", "greenhouse", "Attempts: 3", "transient", "after 3 attempts"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message text missing %q: %s", want, text)
		}
	}
}

func TestFormatMessageApplicationLink(t *testing.T) {
	tcs := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "with link", prefix: "https://app.example/applications", want: "<https://app.example/applications/app-9|app-9>"},
		{name: "invalid prefix", prefix: "not a url", want: "`app-9`"},
		{name: "no prefix", want: "`app-9`"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test", AppURLPrefix: tc.prefix})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			text, _ := client.formatMessage(notify.SubmissionFailurePayload{ApplicationID: "app-9"})["text"].(string)
			if !strings.Contains(text, tc.want) {
				t.Fatalf("expected %q in text: %s", tc.want, text)
			}
		})
	}
}

func TestFormatMessageEscapesText(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, _ := client.formatMessage(notify.SubmissionFailurePayload{Reason: "form <submit> & wait"})["text"].(string)
	if !strings.Contains(text, "form &lt;submit&gt; &amp; wait") {
		t.Fatalf("expected escaped reason, got: %s", text)
	}
}

func TestSendSubmissionFailureRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendSubmissionFailure(context.Background(), notify.SubmissionFailurePayload{ApplicationID: "a"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}
