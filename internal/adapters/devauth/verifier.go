package devauth

// Package devauth provides a config-driven bearer token verifier for local
// development (AUTH_MODE=static).

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	"github.com/target/mmk-autoapply/internal/ports"
)

// Config controls the dev verifier. Token, UserID and Email are required;
// Groups may be empty, which maps to the guest role with the default mapper.
type Config struct {
	Token  string
	UserID string
	Email  string
	Groups []string
	// TokenTTL sets the expiry reported on each verification. Default 8h.
	TokenTTL time.Duration
}

// Verifier accepts exactly one configured token.
type Verifier struct {
	token    []byte
	identity domainauth.Identity
	ttl      time.Duration
	now      func() time.Time
}

var _ ports.TokenVerifier = (*Verifier)(nil)

// NewVerifier constructs a dev verifier from Config.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("dev auth: Token is required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Verifier{
		token: []byte(cfg.Token),
		identity: domainauth.Identity{
			UserID: cfg.UserID,
			Email:  cfg.Email,
			Groups: append([]string(nil), cfg.Groups...),
		},
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Verify compares the token in constant time and returns the dev identity.
func (v *Verifier) Verify(_ context.Context, token string) (domainauth.Identity, error) {
	if subtle.ConstantTimeCompare([]byte(token), v.token) != 1 {
		return domainauth.Identity{}, domainauth.ErrInvalidToken
	}
	id := v.identity
	id.Groups = append([]string(nil), v.identity.Groups...)
	id.ExpiresAt = v.now().Add(v.ttl)
	return id, nil
}
