package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	apperrors "github.com/target/mmk-autoapply/internal/errors"
	"github.com/target/mmk-autoapply/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Verifier ports.TokenVerifier
	Roles    ports.RoleMapper
	Logger   *slog.Logger
	// Now overrides the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// AuthService resolves bearer tokens into the session the API acts for.
type AuthService struct {
	verifier ports.TokenVerifier
	roles    ports.RoleMapper
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if opts.Roles == nil {
		return nil, errors.New("role mapper is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		verifier: opts.Verifier,
		roles:    opts.Roles,
		logger:   logger.With("component", "auth_service"),
		now:      now,
	}, nil
}

// MustNewAuthService constructs an AuthService and panics on error.
func MustNewAuthService(opts AuthServiceOptions) *AuthService {
	svc, err := NewAuthService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create AuthService: %v", err))
	}
	return svc
}

// Authenticate verifies a bearer token and maps the identity to a role.
// Missing or rejected tokens yield an unauthorized AppError; principals that
// map to the guest role yield a forbidden AppError.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domainauth.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.Unauthorized("missing bearer token")
	}

	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, domainauth.ErrInvalidToken) {
			s.logger.DebugContext(ctx, "bearer token rejected", "error", err)
			return nil, apperrors.Unauthorized("invalid bearer token")
		}
		return nil, fmt.Errorf("verify bearer token: %w", err)
	}
	if identity.UserID == "" {
		return nil, apperrors.Unauthorized("bearer token has no subject")
	}

	sess := domainauth.Session{
		UserID:    identity.UserID,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		Groups:    identity.Groups,
		Role:      s.roles.Map(identity.Groups),
		ExpiresAt: identity.ExpiresAt,
	}
	if sess.Expired(s.now()) {
		return nil, apperrors.Unauthorized("bearer token expired")
	}
	if sess.IsGuest() {
		s.logger.InfoContext(ctx, "guest principal denied", "user_id", sess.UserID)
		return nil, apperrors.Forbidden("insufficient role")
	}
	return &sess, nil
}
