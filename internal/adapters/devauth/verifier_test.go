package devauth

import (
	"context"
	"errors"
	"testing"
	"time"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
)

func TestNewVerifier_Validation(t *testing.T) {
	cases := []Config{
		{UserID: "u", Email: "e"},
		{Token: "t", Email: "e"},
		{Token: "t", UserID: "u"},
	}
	for _, cfg := range cases {
		if _, err := NewVerifier(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(Config{Token: "dev-token", UserID: "dev-user", Email: "dev@example.com", Groups: []string{"users"}})
	if err != nil {
		t.Fatalf("NewVerifier error: %v", err)
	}
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	id, err := v.Verify(context.Background(), "dev-token")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if id.UserID != "dev-user" || id.Email != "dev@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.ExpiresAt.Equal(now.Add(8 * time.Hour)) {
		t.Fatalf("unexpected expiry: %s", id.ExpiresAt)
	}

	id.Groups[0] = "mutated"
	again, _ := v.Verify(context.Background(), "dev-token")
	if again.Groups[0] != "users" {
		t.Fatalf("groups should not be shared between calls")
	}

	if _, err := v.Verify(context.Background(), "dev-token-x"); !errors.Is(err, domainauth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
