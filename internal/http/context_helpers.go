package httpx

import (
	"context"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
)

type sessionCtxKey struct{}

// WithSession attaches an authenticated session to ctx. A nil session leaves
// ctx untouched.
func WithSession(ctx context.Context, s *domainauth.Session) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFrom returns the session RequireBearer stored on ctx.
func SessionFrom(ctx context.Context) (*domainauth.Session, bool) {
	s, _ := ctx.Value(sessionCtxKey{}).(*domainauth.Session)
	return s, s != nil
}

// userID is the owner every application query is scoped to.
func userID(ctx context.Context) string {
	if s, ok := SessionFrom(ctx); ok {
		return s.UserID
	}
	return ""
}
