// Package telegram delivers submission failure notifications to a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/target/mmk-autoapply/internal/observability/notify"
)

// Config captures runtime configuration for the Telegram sink.
type Config struct {
	Token      string
	ChatID     int64
	RetryLimit int
	Timeout    time.Duration
	// Endpoint overrides tgbotapi.APIEndpoint (format "https://host/bot%s/%s").
	Endpoint string
	Client   *http.Client
}

// Client sends notifications through the Telegram Bot API.
type Client struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	retryLimit int
}

var _ notify.Sink = (*Client)(nil)

// NewClient authenticates the bot token against the Bot API.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Client{bot: bot, chatID: cfg.ChatID, retryLimit: max(cfg.RetryLimit, 0)}, nil
}

// SendSubmissionFailure sends an HTML formatted message to the configured chat.
func (c *Client) SendSubmissionFailure(ctx context.Context, payload notify.SubmissionFailurePayload) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(payload))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	return notify.Retry(ctx, c.retryLimit, func() error {
		if _, err := c.bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	})
}

func formatMessage(p notify.SubmissionFailurePayload) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>Auto-apply failed</b>")
	if p.ApplicationID != "" {
		fmt.Fprintf(&b, " <code>%s</code>", html.EscapeString(p.ApplicationID))
	}
	b.WriteByte('\n')

	if p.JobTitle != "" || p.Company != "" {
		fmt.Fprintf(&b, "🏢 %s", html.EscapeString(p.JobTitle))
		if p.Company != "" {
			fmt.Fprintf(&b, " at %s", html.EscapeString(p.Company))
		}
		b.WriteByte('\n')
	}
	if p.Source != "" {
		fmt.Fprintf(&b, "🔗 %s\n", html.EscapeString(p.Source))
	}
	if p.Attempts > 0 {
		fmt.Fprintf(&b, "🔁 attempts: %d\n", p.Attempts)
	}
	if p.Reason != "" {
		fmt.Fprintf(&b, "❌ %s", html.EscapeString(p.Reason))
	}
	return strings.TrimRight(b.String(), "\n")
}
