package store

import (
	"testing"
	"time"
)

func TestUserPatchApplyMergesOnlySuppliedFields(t *testing.T) {
	verified := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)
	current := User{
		ID:    "user-1",
		Name:  "Ada",
		Email: "ada@example.com",
		Image: "https://example.com/a.png",
	}

	name := "Grace"
	updated := UserPatch{Name: &name, EmailVerified: &verified}.Apply(current)

	if updated.Name != "Grace" {
		t.Fatalf("Name = %q, want %q", updated.Name, "Grace")
	}
	if updated.EmailVerified == nil || !updated.EmailVerified.Equal(verified) {
		t.Fatalf("EmailVerified = %v, want %v", updated.EmailVerified, verified)
	}
	if updated.Email != current.Email || updated.Image != current.Image || updated.ID != current.ID {
		t.Fatalf("unsupplied fields changed: %+v", updated)
	}
}

func TestUserPatchIsZero(t *testing.T) {
	if !(UserPatch{}).IsZero() {
		t.Fatal("empty patch must report zero")
	}
	email := ""
	if (UserPatch{Email: &email}).IsZero() {
		t.Fatal("a supplied empty string is still a supplied field")
	}
}

func TestSessionPatchApply(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	current := Session{SessionToken: "tok-1", UserID: "user-1", Expires: time.Now()}

	owner := "user-2"
	updated := SessionPatch{UserID: &owner, Expires: &expires}.Apply(current)

	if updated.UserID != "user-2" {
		t.Fatalf("UserID = %q, want %q", updated.UserID, "user-2")
	}
	if !updated.Expires.Equal(expires) {
		t.Fatalf("Expires = %v, want %v", updated.Expires, expires)
	}
	if updated.SessionToken != "tok-1" {
		t.Fatalf("SessionToken changed: %q", updated.SessionToken)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	if (Session{Expires: now.Add(time.Minute)}).Expired(now) {
		t.Fatal("future expiry reported as expired")
	}
	if !(Session{Expires: now.Add(-time.Minute)}).Expired(now) {
		t.Fatal("past expiry not reported as expired")
	}
	if (Session{Expires: now}).Expired(now) {
		t.Fatal("expiry exactly at now must not count as expired")
	}
}
