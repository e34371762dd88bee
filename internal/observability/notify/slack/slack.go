// Package slack delivers submission failure notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/target/mmk-autoapply/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// AppURLPrefix, when set, links the application id to the frontend.
	AppURLPrefix string
}

// Client delivers failure notifications to a Slack webhook.
type Client struct {
	webhookURL   string
	channel      string
	username     string
	retryLimit   int
	appURLPrefix string
	client       *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "autoapply"
	}

	return &Client{
		webhookURL:   webhookURL,
		channel:      strings.TrimSpace(cfg.Channel),
		username:     username,
		retryLimit:   max(cfg.RetryLimit, 0),
		appURLPrefix: strings.TrimSpace(cfg.AppURLPrefix),
		client:       hc,
	}, nil
}

// SendSubmissionFailure posts a formatted message to Slack.
func (c *Client) SendSubmissionFailure(ctx context.Context, payload notify.SubmissionFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return notify.Retry(ctx, c.retryLimit, func() error { return c.post(ctx, body) })
}

func (c *Client) formatMessage(payload notify.SubmissionFailurePayload) map[string]any {
	var text strings.Builder
	text.WriteString("*Auto-apply failed*")
	if app := c.applicationRef(payload.ApplicationID); app != "" {
		text.WriteByte(' ')
		text.WriteString(app)
	}
	text.WriteByte('\n')

	job := strings.TrimSpace(payload.JobTitle)
	if payload.Company != "" {
		job = strings.TrimSpace(job + " at " + payload.Company)
	}
	fields := []struct{ label, value string }{
		{"Severity", fallback(payload.Severity, notify.SeverityCritical)},
		{"Job", escape(job)},
		{"Source", escape(payload.Source)},
		{"User", escape(payload.UserID)},
		{"Attempts", attemptsValue(payload.Attempts)},
		{"Error class", payload.ErrorClass},
		{"Reason", escape(payload.Reason)},
	}
	for _, f := range fields {
		writeField(&text, f.label, f.value)
	}
	writeMetadata(&text, payload.Metadata)

	ts := payload.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	text.WriteString("• Timestamp: ")
	text.WriteString(ts.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) applicationRef(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if c.appURLPrefix != "" {
		if u, err := url.Parse(c.appURLPrefix); err == nil && u.Scheme != "" && u.Host != "" {
			if link, err := url.JoinPath(u.String(), id); err == nil {
				return fmt.Sprintf("<%s|%s>", link, escape(id))
			}
		}
	}
	return "`" + escape(id) + "`"
}

func attemptsValue(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(value string) string {
	return slackEscaper.Replace(strings.TrimSpace(value))
}

func writeField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(text, "• %s: %s\n", label, value)
}

func writeMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(text, "    • %s: %s\n", k, escape(metadata[k]))
	}
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("read slack error response: %w", readErr)
		}
		return fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain slack response body: %w", err)
	}
	return nil
}
