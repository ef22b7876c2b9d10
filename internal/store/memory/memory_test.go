package memory

import (
	"context"
	"testing"
	"time"

	"authstore/internal/store"
	"authstore/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Adapter {
		return New()
	})
}

func TestCreateUserUsesInjectedGenerator(t *testing.T) {
	s := New(WithIDGenerator(func() string { return "fixed-id" }))

	created, err := s.CreateUser(context.Background(), store.User{Email: "gen@example.com"})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if created.ID != "fixed-id" {
		t.Fatalf("expected injected ID, got %q", created.ID)
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	user, err := s.CreateUser(ctx, store.User{Email: "purge@example.com"})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	seed := []store.Session{
		{SessionToken: "live", UserID: user.ID, Expires: now.Add(time.Hour)},
		{SessionToken: "dead-1", UserID: user.ID, Expires: now.Add(-time.Hour)},
		{SessionToken: "dead-2", UserID: user.ID, Expires: now.Add(-time.Minute)},
	}
	for _, session := range seed {
		if _, err := s.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}
	}
	tokens := []store.VerificationToken{
		{Identifier: "a@example.com", Token: "t1", Expires: now.Add(-time.Hour)},
		{Identifier: "b@example.com", Token: "t2", Expires: now.Add(time.Hour)},
	}
	for _, token := range tokens {
		if _, err := s.CreateVerificationToken(ctx, token); err != nil {
			t.Fatalf("CreateVerificationToken returned error: %v", err)
		}
	}

	sessions, purgedTokens, err := s.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpired returned error: %v", err)
	}
	if sessions != 2 || purgedTokens != 1 {
		t.Fatalf("expected 2 sessions and 1 token purged, got %d and %d", sessions, purgedTokens)
	}

	if session, _, err := s.GetSessionAndUser(ctx, "live"); err != nil || session == nil {
		t.Fatalf("expected live session to survive, got %+v, %v", session, err)
	}
	if token, err := s.UseVerificationToken(ctx, "b@example.com", "t2"); err != nil || token == nil {
		t.Fatalf("expected live token to survive, got %+v, %v", token, err)
	}
}
