package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-autoapply/internal/observability/notify"
)

type fakeBotAPI struct {
	mu   sync.Mutex
	sent []url.Values
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"autoapply","username":"autoapply_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			f.mu.Lock()
			f.sent = append(f.sent, r.PostForm)
			f.mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{ChatID: 1})
	require.Error(t, err)
	_, err = NewClient(Config{Token: "t"})
	require.Error(t, err)
}

func TestSendSubmissionFailure(t *testing.T) {
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client, err := NewClient(Config{Token: "token", ChatID: 42, Endpoint: srv.URL + "/bot%s/%s"})
	require.NoError(t, err)

	err = client.SendSubmissionFailure(context.Background(), notify.SubmissionFailurePayload{
		ApplicationID: "app-1",
		JobTitle:      "SRE",
		Company:       "Acme & Co",
		Attempts:      3,
		Reason:        "submission failed after 3 attempts",
	})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "42", fake.sent[0].Get("chat_id"))
	assert.Equal(t, "HTML", fake.sent[0].Get("parse_mode"))
	text := fake.sent[0].Get("text")
	assert.Contains(t, text, "<code>app-1</code>")
	assert.Contains(t, text, "Acme &amp; Co")
	assert.Contains(t, text, "attempts: 3")
}

func TestFormatMessageOmitsEmptyFields(t *testing.T) {
	text := formatMessage(notify.SubmissionFailurePayload{Reason: "posting closed"})
	assert.NotContains(t, text, "🏢")
	assert.NotContains(t, text, "attempts")
	assert.True(t, strings.HasSuffix(text, "posting closed"))
}
