package bootstrap

import (
	"log/slog"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/observability/notify/slack"
	"github.com/target/mmk-autoapply/internal/observability/notify/telegram"
	"github.com/target/mmk-autoapply/internal/observability/statsd"
	"github.com/target/mmk-autoapply/internal/service/failurenotifier"
)

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsSink is nil when metrics are disabled or the client failed to start.
	MetricsSink     *statsd.Client
	FailureNotifier *failurenotifier.Service
}

// metricsSink returns the sink as an interface, keeping nil a true nil.
//
//nolint:ireturn // callers take the statsd.Sink port.
func (o ObservabilityContainer) metricsSink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// Close flushes and closes the metrics client.
func (o ObservabilityContainer) Close() error {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink.Close()
}

// buildObservability configures metrics and notification adapters. Failures
// are logged and leave the affected adapter disabled.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		FailureNotifier: buildFailureNotifier(logger, cfg.Notifications),
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: logger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			AppURLPrefix: cfg.Slack.AppURLPrefix,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(telegram.Config{
			Token:      cfg.Telegram.BotToken,
			ChatID:     cfg.Telegram.ChatID,
			RetryLimit: cfg.RetryLimit,
			Timeout:    cfg.Timeout,
			Endpoint:   cfg.Telegram.Endpoint,
		})
		if err != nil {
			logger.Error("failed to initialise telegram notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "telegram", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:  logger,
		Sinks:   sinks,
		Timeout: cfg.Timeout,
	})
}
