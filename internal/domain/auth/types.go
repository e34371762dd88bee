package auth

// Package auth contains domain-level types for bearer authentication.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"time"
)

// ErrInvalidToken is returned by token verifiers for tokens that are unknown,
// malformed or expired.
var ErrInvalidToken = errors.New("invalid bearer token")

// Role represents an application's authorization role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Identity represents the authenticated principal behind a bearer token.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID    string // stable user identifier (e.g., samAccountName or sub)
	FirstName string
	LastName  string
	Email     string
	Groups    []string
	ExpiresAt time.Time // absolute expiry of the presented token
}

// Session is the per-request principal the API acts on behalf of. The session
// store also persists it as JSON keyed by the opaque token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Groups    []string  `json:"groups,omitempty"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsGuest returns true if the session role is guest.
func (s Session) IsGuest() bool { return s.Role == RoleGuest }

// Expired reports whether the session has a non-zero expiry before now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Identity returns the identity a stored session was issued for.
func (s Session) Identity() Identity {
	return Identity{
		UserID:    s.UserID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Groups:    append([]string(nil), s.Groups...),
		ExpiresAt: s.ExpiresAt,
	}
}
