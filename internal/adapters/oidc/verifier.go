package oidc

// Package oidc verifies bearer ID tokens issued by an OpenID Connect provider.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	"github.com/target/mmk-autoapply/internal/ports"
)

// VerifierConfig holds configuration for the OIDC token verifier.
type VerifierConfig struct {
	// IssuerURL is the provider issuer, with or without the discovery suffix.
	IssuerURL string
	// ClientID is the expected audience of presented tokens.
	ClientID   string
	HTTPClient *http.Client // Optional, defaults to a 30s client
}

// Verifier implements ports.TokenVerifier for OIDC ID tokens.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

var _ ports.TokenVerifier = (*Verifier)(nil)

// NewVerifier performs discovery against the issuer and returns a verifier
// bound to its signing keys.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// The provider keeps this context for later key set refreshes.
	providerCtx := gooidc.ClientContext(context.WithoutCancel(ctx), httpClient)
	op, err := gooidc.NewProvider(providerCtx, normalizeIssuer(cfg.IssuerURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return &Verifier{
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func normalizeIssuer(raw string) string {
	issuer := strings.TrimSuffix(raw, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, "/")
}

// Verify checks signature, issuer, audience and expiry of the raw ID token
// and maps its claims into an Identity. Every verification failure wraps
// domainauth.ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, token string) (domainauth.Identity, error) {
	if token == "" {
		return domainauth.Identity{}, domainauth.ErrInvalidToken
	}
	idTok, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: %w", domainauth.ErrInvalidToken, err)
	}
	var c idTokenClaims
	if claimsErr := idTok.Claims(&c); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: parse claims: %w", domainauth.ErrInvalidToken, claimsErr)
	}

	id := mapClaims(c)
	id.ExpiresAt = idTok.Expiry
	if id.UserID == "" {
		id.UserID = idTok.Subject
	}
	return id, nil
}

// idTokenClaims covers both standard OIDC claims and the AD/ADFS shape.
type idTokenClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	FirstName      string   `json:"firstname"`
	LastName       string   `json:"lastname"`
	Mail           string   `json:"mail"`
	MemberOf       []string `json:"memberof"`

	Email             string   `json:"email"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	PreferredUsername string   `json:"preferred_username"`
	Groups            []string `json:"groups"`
}

// mapClaims prefers AD claims and falls back to the standard ones.
func mapClaims(c idTokenClaims) domainauth.Identity {
	groups := c.MemberOf
	if len(groups) == 0 {
		groups = c.Groups
	}
	return domainauth.Identity{
		UserID:    firstNonEmpty(c.SamAccountName, c.PreferredUsername, c.Sub),
		FirstName: firstNonEmpty(c.FirstName, c.GivenName),
		LastName:  firstNonEmpty(c.LastName, c.FamilyName),
		Email:     firstNonEmpty(c.Mail, c.Email),
		Groups:    groups,
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
