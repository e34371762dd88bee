package data

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/testutil"
)

func TestRedisCacheRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "cache:a", []byte("v"), time.Minute))

		got, err := repo.Get(ctx, "cache:a")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		ttl := client.TTL(ctx, "cache:a").Val()
		assert.True(t, ttl > 0 && ttl <= time.Minute)

		deleted, err := repo.Delete(ctx, "cache:a")
		require.NoError(t, err)
		assert.True(t, deleted)

		got, err = repo.Get(ctx, "cache:a")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set if not exists", func(t *testing.T) {
		ok, err := repo.SetIfNotExists(ctx, "cache:nx", []byte("first"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.SetIfNotExists(ctx, "cache:nx", []byte("second"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.Get(ctx, "cache:nx")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})

	t.Run("sub-second ttl still expires", func(t *testing.T) {
		ok, err := repo.SetIfNotExists(ctx, "cache:short", []byte("x"), 0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Positive(t, client.TTL(ctx, "cache:short").Val())
	})

	t.Run("delete if equals", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "cache:owned", []byte("token-a"), time.Minute))

		deleted, err := repo.DeleteIfEquals(ctx, "cache:owned", []byte("token-b"))
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = repo.DeleteIfEquals(ctx, "cache:owned", []byte("token-a"))
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("in-flight guard", func(t *testing.T) {
		guard := core.NewInFlightGuard(repo, core.InFlightGuardConfig{TTL: 5 * time.Second})

		release, err := guard.Acquire(ctx, "user-1", "job-1")
		require.NoError(t, err)

		_, err = guard.Acquire(ctx, "user-1", "job-1")
		require.ErrorIs(t, err, core.ErrGuardHeld)

		release()
		release2, err := guard.Acquire(ctx, "user-1", "job-1")
		require.NoError(t, err)
		release2()
	})

	require.NoError(t, repo.Health(ctx))
}

func TestRedisCacheRepo_Validation(t *testing.T) {
	// Key validation happens before any network call.
	repo := NewRedisCacheRepo(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	ctx := context.Background()

	require.ErrorIs(t, repo.Set(ctx, "", nil, time.Second), errEmptyKey)
	_, err := repo.Get(ctx, "")
	require.ErrorIs(t, err, errEmptyKey)
	_, err = repo.Delete(ctx, "")
	require.ErrorIs(t, err, errEmptyKey)
	_, err = repo.SetIfNotExists(ctx, "", nil, time.Second)
	require.ErrorIs(t, err, errEmptyKey)
	_, err = repo.DeleteIfEquals(ctx, "", nil)
	require.ErrorIs(t, err, errEmptyKey)
}
