package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
)

func TestStaticTokenVerifier(t *testing.T) {
	v := NewStaticTokenVerifier("tok", DefaultIdentity())
	ctx := context.Background()

	id, err := v.Verify(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", id.UserID)

	_, err = v.Verify(ctx, "other")
	require.ErrorIs(t, err, domainauth.ErrInvalidToken)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.Error(t, store.Save(ctx, domainauth.Session{}))
	require.NoError(t, store.Save(ctx, domainauth.Session{ID: "s1", UserID: "u1"}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStaticRoleMapper(t *testing.T) {
	m := StaticRoleMapper{AdminGroup: "admins", UserGroup: "users"}
	assert.Equal(t, domainauth.RoleAdmin, m.Map([]string{"users", "admins"}))
	assert.Equal(t, domainauth.RoleUser, m.Map([]string{"users"}))
	assert.Equal(t, domainauth.RoleGuest, m.Map([]string{"other"}))
	assert.Equal(t, domainauth.RoleGuest, StaticRoleMapper{}.Map([]string{""}))
}
