package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	"github.com/target/mmk-autoapply/internal/testutil"
)

func testSession(id string, ttl time.Duration) domainauth.Session {
	return domainauth.Session{
		ID:        id,
		UserID:    "user-123",
		Email:     "user@example.com",
		Groups:    []string{"users"},
		Role:      domainauth.RoleUser,
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestSessionStore_SaveGetDelete(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := testSession("test-session-1", 30*time.Minute)
	require.NoError(t, store.Save(ctx, session))

	retrieved, err := store.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, retrieved.UserID)
	assert.Equal(t, session.Groups, retrieved.Groups)
	assert.WithinDuration(t, session.ExpiresAt, retrieved.ExpiresAt, time.Second)

	ttl := client.TTL(ctx, DefaultSessionPrefix+"test-session-1").Val()
	assert.True(t, ttl > 29*time.Minute && ttl <= 30*time.Minute, "ttl %s", ttl)

	require.NoError(t, store.Delete(ctx, "test-session-1"))
	_, err = store.Get(ctx, "test-session-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_Verify(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("bearer-abc", time.Hour)))

	id, err := store.Verify(ctx, "bearer-abc")
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.UserID)
	assert.Equal(t, []string{"users"}, id.Groups)

	_, err = store.Verify(ctx, "bearer-unknown")
	require.ErrorIs(t, err, domainauth.ErrInvalidToken)
	_, err = store.Verify(ctx, "")
	require.ErrorIs(t, err, domainauth.ErrInvalidToken)
}

func TestSessionStore_ExpiredPayloadIsRemoved(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("soon-stale", time.Hour)))
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := store.Get(ctx, "soon-stale")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, client.Exists(ctx, DefaultSessionPrefix+"soon-stale").Val())
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStoreWithPrefix(client, "test-prefix:")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("prefix-test", 30*time.Minute)))
	assert.Equal(t, int64(1), client.Exists(ctx, "test-prefix:prefix-test").Val())

	retrieved, err := store.Get(ctx, "prefix-test")
	require.NoError(t, err)
	assert.Equal(t, "prefix-test", retrieved.ID)
}

func TestSessionStore_SaveRejectsInvalid(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	err := store.Save(ctx, testSession("", time.Hour))
	require.ErrorContains(t, err, "session ID cannot be empty")

	err = store.Save(ctx, testSession("expired-session", -time.Hour))
	require.ErrorContains(t, err, "session is expired")
}
