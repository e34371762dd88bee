package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/adapters/authroles"
	"github.com/target/mmk-autoapply/internal/adapters/devauth"
	"github.com/target/mmk-autoapply/internal/adapters/oidc"
	redisadapter "github.com/target/mmk-autoapply/internal/adapters/redis"
	"github.com/target/mmk-autoapply/internal/ports"
	"github.com/target/mmk-autoapply/internal/service"
)

// AuthConfig contains configuration for auth service.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	IsDev       bool
	Logger      *slog.Logger
}

// ErrAuthMisconfigured is returned when the selected auth mode lacks required settings.
var ErrAuthMisconfigured = errors.New("auth misconfigured")

// BuildAuthService creates an auth service for the configured mode. Unlike a
// UI session login, the API cannot run without a verifier, so configuration
// problems are returned instead of disabling auth.
func BuildAuthService(ctx context.Context, cfg AuthConfig) (*service.AuthService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := buildVerifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Verifier: verifier,
		Roles:    authroles.NewStaticRoleMapper(cfg.Auth.AdminGroups, cfg.Auth.UserGroups),
		Logger:   logger,
	})
}

//nolint:ireturn // the verifier implementation depends on the configured mode.
func buildVerifier(ctx context.Context, cfg AuthConfig, logger *slog.Logger) (ports.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeStatic:
		if !cfg.IsDev {
			logger.Warn("static bearer token auth enabled outside dev mode")
		}
		v, err := devauth.NewVerifier(devauth.Config{
			Token:    cfg.Auth.Static.Token,
			UserID:   cfg.Auth.Static.UserID,
			Email:    cfg.Auth.Static.Email,
			Groups:   cfg.Auth.Static.Groups,
			TokenTTL: cfg.Auth.Static.TokenTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthMisconfigured, err)
		}
		return v, nil

	case config.AuthModeSession:
		if cfg.RedisClient == nil {
			return nil, fmt.Errorf("%w: session mode requires redis", ErrAuthMisconfigured)
		}
		return redisadapter.NewSessionStoreWithPrefix(cfg.RedisClient, cfg.Auth.SessionPrefix), nil

	case config.AuthModeOIDC, "":
		if cfg.Auth.OIDC.IssuerURL == "" {
			return nil, fmt.Errorf("%w: OIDC_ISSUER_URL is required", ErrAuthMisconfigured)
		}
		v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
			IssuerURL: cfg.Auth.OIDC.IssuerURL,
			ClientID:  cfg.Auth.OIDC.ClientID,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc verifier: %w", err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrAuthMisconfigured, cfg.Auth.Mode)
	}
}
