package store

import (
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestNewAccountFromToken(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	tok := (&oauth2.Token{
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}).WithExtra(map[string]any{
		"id_token": "idt",
		"scope":    "openid email",
	})

	account := NewAccount("user-1", "github", "gh-1", tok)

	if account.Type != "oauth" {
		t.Fatalf("Type = %q, want %q", account.Type, "oauth")
	}
	if account.UserID != "user-1" || account.Provider != "github" || account.ProviderAccountID != "gh-1" {
		t.Fatalf("identity fields not carried over: %+v", account)
	}
	if account.AccessToken != "at" || account.RefreshToken != "rt" || account.TokenType != "Bearer" {
		t.Fatalf("token fields not carried over: %+v", account)
	}
	if account.IDToken != "idt" {
		t.Fatalf("IDToken = %q, want %q", account.IDToken, "idt")
	}
	if account.Scope != "openid email" {
		t.Fatalf("Scope = %q, want %q", account.Scope, "openid email")
	}
	if account.ExpiresAt == nil || !account.ExpiresAt.Equal(expiry) {
		t.Fatalf("ExpiresAt = %v, want %v", account.ExpiresAt, expiry)
	}
}

func TestNewAccountWithoutToken(t *testing.T) {
	account := NewAccount("user-1", "github", "gh-1", nil)

	if account.Type != "oauth" {
		t.Fatalf("Type = %q, want %q", account.Type, "oauth")
	}
	if account.AccessToken != "" || account.ExpiresAt != nil {
		t.Fatalf("expected bare account, got %+v", account)
	}
}

func TestNewAccountZeroExpiryStaysNil(t *testing.T) {
	account := NewAccount("user-1", "github", "gh-1", &oauth2.Token{AccessToken: "at"})

	if account.ExpiresAt != nil {
		t.Fatalf("ExpiresAt = %v, want nil for a non-expiring token", account.ExpiresAt)
	}
}
