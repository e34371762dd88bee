package redis

// Package redis provides Redis-backed auth adapters.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	"github.com/target/mmk-autoapply/internal/ports"
)

// DefaultSessionPrefix is the key prefix shared with the token issuer.
const DefaultSessionPrefix = "session:"

// SessionStore keeps opaque bearer tokens in Redis as JSON sessions keyed by
// prefix+token. Key TTLs follow Session.ExpiresAt. The store doubles as a
// ports.TokenVerifier so AUTH_MODE=session accepts any token the issuer
// wrote into the same Redis.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var (
	_ ports.SessionStore  = (*SessionStore)(nil)
	_ ports.TokenVerifier = (*SessionStore)(nil)
)

// ErrNotFound is returned when a session is not found.
var ErrNotFound = errors.New("session not found")

// NewSessionStore creates a new Redis-based session store using DefaultSessionPrefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, DefaultSessionPrefix)
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domainauth.Session{}, ErrNotFound
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.Expired(s.now()) {
		if err := s.Delete(ctx, id); err != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", err)
		}
		return domainauth.Session{}, ErrNotFound
	}
	if sess.ID == "" {
		sess.ID = id
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}

// Verify resolves a bearer token to the identity of its stored session.
func (s *SessionStore) Verify(ctx context.Context, token string) (domainauth.Identity, error) {
	sess, err := s.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return domainauth.Identity{}, domainauth.ErrInvalidToken
	}
	if err != nil {
		return domainauth.Identity{}, err
	}
	return sess.Identity(), nil
}
