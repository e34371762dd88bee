package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	apperrors "github.com/target/mmk-autoapply/internal/errors"
	mocks "github.com/target/mmk-autoapply/internal/mocks/auth"
)

var authNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestAuthService(t *testing.T, verifier *mocks.StaticTokenVerifier) *AuthService {
	t.Helper()
	svc, err := NewAuthService(AuthServiceOptions{
		Verifier: verifier,
		Roles:    mocks.StaticRoleMapper{AdminGroup: "admins", UserGroup: "users"},
		Now:      func() time.Time { return authNow },
	})
	require.NoError(t, err)
	return svc
}

func TestNewAuthService_Validation(t *testing.T) {
	_, err := NewAuthService(AuthServiceOptions{Roles: mocks.StaticRoleMapper{}})
	require.Error(t, err)
	_, err = NewAuthService(AuthServiceOptions{Verifier: &mocks.StaticTokenVerifier{}})
	require.Error(t, err)
	assert.Panics(t, func() { MustNewAuthService(AuthServiceOptions{}) })
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	id := domainauth.Identity{
		UserID:    "ada",
		FirstName: "Ada",
		Email:     "ada@example.com",
		Groups:    []string{"users"},
		ExpiresAt: authNow.Add(time.Hour),
	}
	svc := newTestAuthService(t, mocks.NewStaticTokenVerifier("tok", id))

	sess, err := svc.Authenticate(context.Background(), "  tok ")
	require.NoError(t, err)
	assert.Equal(t, "ada", sess.UserID)
	assert.Equal(t, "Ada", sess.FirstName)
	assert.Equal(t, domainauth.RoleUser, sess.Role)
	assert.Equal(t, id.ExpiresAt, sess.ExpiresAt)
}

func TestAuthService_Authenticate_AdminRole(t *testing.T) {
	id := domainauth.Identity{UserID: "root", Groups: []string{"users", "admins"}}
	svc := newTestAuthService(t, mocks.NewStaticTokenVerifier("tok", id))

	sess, err := svc.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, sess.Role)
}

func TestAuthService_Authenticate_Rejections(t *testing.T) {
	verifier := &mocks.StaticTokenVerifier{Tokens: map[string]domainauth.Identity{
		"expired":    {UserID: "u", Groups: []string{"users"}, ExpiresAt: authNow.Add(-time.Minute)},
		"guest":      {UserID: "g", Groups: []string{"visitors"}},
		"no-subject": {Groups: []string{"users"}},
	}}
	svc := newTestAuthService(t, verifier)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		check func(error) bool
	}{
		{"missing", "", apperrors.IsUnauthorized},
		{"unknown", "nope", apperrors.IsUnauthorized},
		{"expired", "expired", apperrors.IsUnauthorized},
		{"no subject", "no-subject", apperrors.IsUnauthorized},
		{"guest", "guest", apperrors.IsForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Authenticate(ctx, tt.token)
			require.Error(t, err)
			assert.Nil(t, sess)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestAuthService_Authenticate_VerifierFailure(t *testing.T) {
	boom := errors.New("redis down")
	svc := newTestAuthService(t, &mocks.StaticTokenVerifier{
		VerifyFunc: func(context.Context, string) (domainauth.Identity, error) {
			return domainauth.Identity{}, boom
		},
	})

	_, err := svc.Authenticate(context.Background(), "tok")
	require.ErrorIs(t, err, boom)
	assert.False(t, apperrors.IsUnauthorized(err))
}
