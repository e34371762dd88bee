package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - worker",
			input:    "worker",
			expected: map[ServiceMode]bool{ServiceModeWorker: true},
		},
		{
			name:  "all services with spaces",
			input: " http , worker , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
		},
		{
			name:  "duplicate services",
			input: "http,http,worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
			},
		},
		{
			name:     "trailing comma",
			input:    "reaper,",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{name: "empty string", input: "", expectError: true},
		{name: "only commas", input: ",,", expectError: true},
		{name: "unknown service", input: "http,scheduler", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "http,reaper"}
	if !cfg.IsHTTPServerEnabled() {
		t.Error("expected http enabled")
	}
	if cfg.IsWorkerEnabled() {
		t.Error("expected worker disabled")
	}
	if !cfg.IsReaperEnabled() {
		t.Error("expected reaper enabled")
	}

	invalid := AppConfig{Services: "bogus"}
	if invalid.IsHTTPServerEnabled() || invalid.IsWorkerEnabled() || invalid.IsReaperEnabled() {
		t.Error("expected every role disabled for an invalid service list")
	}
}

func TestValidServiceModes(t *testing.T) {
	expected := []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper}
	if got := ValidServiceModes(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "OIDC")
	t.Setenv("OIDC_ISSUER_URL", " https://login.example.com ")
	t.Setenv("OIDC_CLIENT_ID", "autoapply-web")
	t.Setenv("STATIC_AUTH_TOKEN", "dev-token")
	t.Setenv("STATIC_AUTH_GROUPS", "admins;devs")
	t.Setenv("ADMIN_GROUPS", "cn=admins,ou=groups,dc=example,dc=org")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := AuthConfig{
		Mode: AuthModeOIDC,
		OIDC: OIDCConfig{IssuerURL: "https://login.example.com", ClientID: "autoapply-web"},
		Static: StaticAuthConfig{
			Token:    "dev-token",
			UserID:   "dev-user",
			Email:    "dev@example.com",
			Groups:   []string{"admins", "devs"},
			TokenTTL: 8 * time.Hour,
		},
		SessionPrefix: "session:",
		AdminGroups:   "cn=admins,ou=groups,dc=example,dc=org",
		UserGroups:    "autoapply-users",
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestAppConfig_InvalidAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "oauth")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected error for unsupported auth mode")
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Store.Driver != StoreDriverPostgres {
		t.Errorf("expected postgres store, got %q", cfg.Store.Driver)
	}
	if cfg.ApplyRunner.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.ApplyRunner.Concurrency)
	}
	if cfg.ApplyRunner.SubmitTimeout != 60*time.Second {
		t.Errorf("expected submit timeout 60s, got %v", cfg.ApplyRunner.SubmitTimeout)
	}
	if cfg.ApplyRunner.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", cfg.ApplyRunner.MaxAttempts)
	}
	if cfg.Submitters.File != "config/submitters.yaml" {
		t.Errorf("unexpected submitters file %q", cfg.Submitters.File)
	}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsWorkerEnabled() || !cfg.IsReaperEnabled() {
		t.Error("expected every role enabled by default")
	}
}

func TestApplyRunnerConfig_Sanitize(t *testing.T) {
	tests := []struct {
		name string
		in   ApplyRunnerConfig
		want func(t *testing.T, c ApplyRunnerConfig)
	}{
		{
			name: "clamps low values",
			in:   ApplyRunnerConfig{Concurrency: 0, SubmitTimeout: time.Second, MaxAttempts: 0},
			want: func(t *testing.T, c ApplyRunnerConfig) {
				if c.Concurrency != 1 || c.SubmitTimeout != 5*time.Second || c.MaxAttempts != 1 {
					t.Fatalf("unexpected clamp: %+v", c)
				}
			},
		},
		{
			name: "clamps high values",
			in:   ApplyRunnerConfig{Concurrency: 500, SubmitTimeout: time.Hour, MaxAttempts: 99},
			want: func(t *testing.T, c ApplyRunnerConfig) {
				if c.Concurrency != 64 || c.SubmitTimeout != 10*time.Minute || c.MaxAttempts != 10 {
					t.Fatalf("unexpected clamp: %+v", c)
				}
			},
		},
		{
			name: "lease outlives submit timeout",
			in:   ApplyRunnerConfig{Concurrency: 2, SubmitTimeout: time.Minute, MaxAttempts: 3, TaskLease: time.Second},
			want: func(t *testing.T, c ApplyRunnerConfig) {
				if c.TaskLease != 2*time.Minute {
					t.Fatalf("expected lease 2m, got %v", c.TaskLease)
				}
			},
		},
		{
			name: "max delay never below base delay",
			in:   ApplyRunnerConfig{BaseDelay: time.Minute, MaxDelay: time.Second, Jitter: 3},
			want: func(t *testing.T, c ApplyRunnerConfig) {
				if c.MaxDelay != time.Minute {
					t.Fatalf("expected max delay 1m, got %v", c.MaxDelay)
				}
				if c.Jitter != 1 {
					t.Fatalf("expected jitter clamped to 1, got %v", c.Jitter)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.Sanitize()
			tt.want(t, c)
		})
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{Interval: time.Second, SubmissionLogMaxAge: time.Minute, BatchSize: 0}
	cfg.Sanitize()

	if cfg.Interval != 10*time.Second {
		t.Errorf("expected interval floor 10s, got %v", cfg.Interval)
	}
	if cfg.SubmissionLogMaxAge != 24*time.Hour {
		t.Errorf("expected retention floor 24h, got %v", cfg.SubmissionLogMaxAge)
	}
	if cfg.BatchSize != 1 {
		t.Errorf("expected batch size 1, got %d", cfg.BatchSize)
	}

	cfg.BatchSize = 50000
	cfg.Sanitize()
	if cfg.BatchSize != 10000 {
		t.Errorf("expected batch size cap 10000, got %d", cfg.BatchSize)
	}
}

func TestRedisConfig_Sanitize(t *testing.T) {
	cfg := RedisConfig{URI: " ", SentinelNodes: []string{" ", ""}, UseSentinel: true}
	cfg.Sanitize()

	if cfg.Enabled() {
		t.Fatal("expected redis disabled without an address or sentinel nodes")
	}

	cfg = RedisConfig{URI: " redis:6379 "}
	cfg.Sanitize()
	if !cfg.Enabled() || cfg.URI != "redis:6379" {
		t.Fatalf("expected trimmed, enabled config, got %+v", cfg)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	want := "host=db port=5433 user=u password=p dbname=n sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
		Prefix:        ".autoapply.",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "autoapply" {
		t.Fatalf("expected prefix dots trimmed, got %q", cfg.Prefix)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
		},
		Telegram: TelegramNotificationConfig{
			Enabled:  true,
			BotToken: "token",
		},
	}

	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit < 0 {
		t.Fatalf("expected retry limit to be clamped to >= 0, got %d", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled without a webhook url")
	}
	if cfg.Slack.Username != "autoapply" {
		t.Fatalf("expected slack username default, got %q", cfg.Slack.Username)
	}
	if cfg.Telegram.Enabled {
		t.Fatal("expected telegram to be disabled without a chat id")
	}

	// Disabled top-level should disable child sinks.
	cfg = ObservabilityNotificationsConfig{
		Enabled: false,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
		},
		Telegram: TelegramNotificationConfig{
			Enabled:  true,
			BotToken: "token",
			ChatID:   42,
		},
	}

	cfg.Sanitize()

	if cfg.Slack.Enabled || cfg.Telegram.Enabled {
		t.Fatal("expected all sinks disabled when notifications are disabled")
	}
}
