package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
)

// TokenVerifier turns a bearer token into the identity it was issued for.
// Implementations return ErrInvalidToken (wrapped or not) for tokens that are
// malformed, unknown or expired.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domainauth.Identity, error)
}

// SessionStore persists and retrieves opaque session tokens issued elsewhere.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// RoleMapper maps provider groups to application roles.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}
