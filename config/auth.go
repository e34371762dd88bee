package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects how bearer tokens on /api routes are verified.
type AuthMode string

const (
	// AuthModeOIDC verifies bearer tokens as OIDC ID tokens.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeSession looks bearer tokens up as opaque session ids in Redis.
	AuthModeSession AuthMode = "session"
	// AuthModeStatic accepts a single configured token (development only).
	AuthModeStatic AuthMode = "static"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "session", "static":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, session, static)", v)
	}
}

// OIDCConfig contains the issuer and audience used to verify ID tokens.
type OIDCConfig struct {
	IssuerURL string `env:"ISSUER_URL"`
	ClientID  string `env:"CLIENT_ID" envDefault:"autoapply"`
}

// StaticAuthConfig controls the single-token identity used when AUTH_MODE=static.
type StaticAuthConfig struct {
	Token    string        `env:"TOKEN"`
	UserID   string        `env:"USER_ID"   envDefault:"dev-user"`
	Email    string        `env:"EMAIL"     envDefault:"dev@example.com"`
	Groups   []string      `env:"GROUPS"    envDefault:"autoapply-users" envSeparator:";"`
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	OIDC   OIDCConfig       `envPrefix:"OIDC_"`
	Static StaticAuthConfig `envPrefix:"STATIC_AUTH_"`

	// SessionPrefix is the Redis key prefix used when Mode=session.
	SessionPrefix string `env:"AUTH_SESSION_PREFIX" envDefault:"session:"`

	// AdminGroups and UserGroups are comma-separated group names or DNs.
	AdminGroups string `env:"ADMIN_GROUPS"`
	UserGroups  string `env:"USER_GROUPS"  envDefault:"autoapply-users"`
}

// Sanitize trims whitespace from free-form values.
func (a *AuthConfig) Sanitize() {
	a.OIDC.IssuerURL = strings.TrimSpace(a.OIDC.IssuerURL)
	a.OIDC.ClientID = strings.TrimSpace(a.OIDC.ClientID)
	a.Static.Token = strings.TrimSpace(a.Static.Token)
	if a.Static.TokenTTL <= 0 {
		a.Static.TokenTTL = 8 * time.Hour
	}
	if strings.TrimSpace(a.SessionPrefix) == "" {
		a.SessionPrefix = "session:"
	}
}
