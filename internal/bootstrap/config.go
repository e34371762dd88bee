package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/mmk-autoapply/config"
)

// InitLogger builds the process logger and installs it as the slog default.
// Development mode logs human-readable text with source locations; everything
// else logs JSON. Unknown levels fall back to info.
func InitLogger(cfg *config.AppConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var lvl slog.Level
	if lvl.UnmarshalText([]byte(cfg.LogLevel)) == nil {
		opts.Level = lvl
	}

	var handler slog.Handler
	if cfg.IsDev {
		opts.AddSource = true
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads the environment into AppConfig. Variables in the optional
// dotenv files (".env" when none are named) fill in anything the process
// environment leaves unset; missing files are ignored.
func LoadConfig(envFiles ...string) (config.AppConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.AppConfig{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[config.AppConfig]()
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig rejects a SERVICES value that is malformed or empty.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	enabled, err := cfg.GetEnabledServices()
	switch {
	case err != nil:
		return fmt.Errorf("invalid service configuration: %w", err)
	case len(enabled) == 0:
		return errors.New("no services enabled")
	}
	return nil
}

// GetEnabledServices lists enabled roles sorted by name; invalid or missing
// configuration yields an empty list.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	enabled, err := cfg.GetEnabledServices()
	if err != nil {
		return []string{}
	}
	names := make([]string, 0, len(enabled))
	for mode := range enabled {
		names = append(names, string(mode))
	}
	slices.Sort(names)
	return names
}
