// Package storetest holds the conformance suite every in-process
// backend runs against the store.Adapter contract.
package storetest

import (
	"context"
	"testing"
	"time"

	"authstore/internal/store"
)

// Factory opens a fresh, empty adapter for one subtest.
type Factory func(t *testing.T) store.Adapter

// Run executes the contract suite against adapters produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("CreateAndGetUser", func(t *testing.T) { testCreateAndGetUser(t, open(t)) })
	t.Run("LookupMissingReturnsNil", func(t *testing.T) { testLookupMissing(t, open(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, open(t)) })
	t.Run("PartialUpdatePreservesFields", func(t *testing.T) { testPartialUpdate(t, open(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testDeleteUserCascades(t, open(t)) })
	t.Run("LinkAccountIdempotent", func(t *testing.T) { testLinkAccountIdempotent(t, open(t)) })
	t.Run("LinkAccountConflict", func(t *testing.T) { testLinkAccountConflict(t, open(t)) })
	t.Run("UnlinkAccount", func(t *testing.T) { testUnlinkAccount(t, open(t)) })
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, open(t)) })
	t.Run("DuplicateSessionToken", func(t *testing.T) { testDuplicateSessionToken(t, open(t)) })
	t.Run("LazySessionExpiry", func(t *testing.T) { testLazySessionExpiry(t, open(t)) })
	t.Run("VerificationTokenSingleUse", func(t *testing.T) { testVerificationSingleUse(t, open(t)) })
}

func mustCreateUser(t *testing.T, adapter store.Adapter, user store.User) store.User {
	t.Helper()
	created, err := adapter.CreateUser(context.Background(), user)
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	return created
}

func testCreateAndGetUser(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	verified := time.Now().UTC().Truncate(time.Second)

	created := mustCreateUser(t, adapter, store.User{
		Name:          "Ada Lovelace",
		Email:         "ada@example.com",
		EmailVerified: &verified,
		Image:         "https://example.com/ada.png",
	})
	if created.ID == "" {
		t.Fatal("expected CreateUser to assign an ID")
	}

	got, err := adapter.GetUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected user, got nil")
	}
	if got.Name != "Ada Lovelace" || got.Email != "ada@example.com" || got.Image != created.Image {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.EmailVerified == nil || !got.EmailVerified.Equal(verified) {
		t.Fatalf("expected emailVerified %v, got %v", verified, got.EmailVerified)
	}

	byEmail, err := adapter.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail returned error: %v", err)
	}
	if byEmail == nil || byEmail.ID != created.ID {
		t.Fatalf("expected user %q by email, got %+v", created.ID, byEmail)
	}
}

func testLookupMissing(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()

	if user, err := adapter.GetUser(ctx, "missing"); err != nil || user != nil {
		t.Fatalf("GetUser(missing) = %+v, %v; want nil, nil", user, err)
	}
	if user, err := adapter.GetUserByEmail(ctx, "missing@example.com"); err != nil || user != nil {
		t.Fatalf("GetUserByEmail(missing) = %+v, %v; want nil, nil", user, err)
	}
	if user, err := adapter.GetUserByAccount(ctx, "github", "0"); err != nil || user != nil {
		t.Fatalf("GetUserByAccount(missing) = %+v, %v; want nil, nil", user, err)
	}
	if user, err := adapter.UpdateUser(ctx, "missing", store.UserPatch{}); err != nil || user != nil {
		t.Fatalf("UpdateUser(missing) = %+v, %v; want nil, nil", user, err)
	}
	if user, err := adapter.DeleteUser(ctx, "missing"); err != nil || user != nil {
		t.Fatalf("DeleteUser(missing) = %+v, %v; want nil, nil", user, err)
	}
	if account, err := adapter.UnlinkAccount(ctx, "github", "0"); err != nil || account != nil {
		t.Fatalf("UnlinkAccount(missing) = %+v, %v; want nil, nil", account, err)
	}
	if session, err := adapter.DeleteSession(ctx, "missing"); err != nil || session != nil {
		t.Fatalf("DeleteSession(missing) = %+v, %v; want nil, nil", session, err)
	}
	if session, err := adapter.UpdateSession(ctx, "missing", store.SessionPatch{}); err != nil || session != nil {
		t.Fatalf("UpdateSession(missing) = %+v, %v; want nil, nil", session, err)
	}
	session, user, err := adapter.GetSessionAndUser(ctx, "missing")
	if err != nil || session != nil || user != nil {
		t.Fatalf("GetSessionAndUser(missing) = %+v, %+v, %v; want nil, nil, nil", session, user, err)
	}
	if token, err := adapter.UseVerificationToken(ctx, "missing", "tok"); err != nil || token != nil {
		t.Fatalf("UseVerificationToken(missing) = %+v, %v; want nil, nil", token, err)
	}
}

func testDuplicateEmail(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	mustCreateUser(t, adapter, store.User{Email: "dup@example.com"})

	if _, err := adapter.CreateUser(ctx, store.User{Email: "dup@example.com"}); err == nil {
		t.Fatal("expected constraint violation for duplicate email")
	}
}

func testPartialUpdate(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	created := mustCreateUser(t, adapter, store.User{Name: "Before", Email: "keep@example.com"})

	name := "After"
	updated, err := adapter.UpdateUser(ctx, created.ID, store.UserPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}
	if updated == nil {
		t.Fatal("expected updated user, got nil")
	}
	if updated.Name != "After" {
		t.Fatalf("expected name %q, got %q", "After", updated.Name)
	}
	if updated.Email != "keep@example.com" {
		t.Fatalf("expected untouched email, got %q", updated.Email)
	}
}

func testDeleteUserCascades(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	created := mustCreateUser(t, adapter, store.User{Email: "cascade@example.com"})

	for _, providerAccountID := range []string{"acct-1", "acct-2"} {
		err := adapter.LinkAccount(ctx, store.Account{
			UserID:            created.ID,
			Type:              "oauth",
			Provider:          "github",
			ProviderAccountID: providerAccountID,
		})
		if err != nil {
			t.Fatalf("LinkAccount returned error: %v", err)
		}
	}
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	for _, token := range []string{"cascade-sess-1", "cascade-sess-2"} {
		if _, err := adapter.CreateSession(ctx, store.Session{SessionToken: token, UserID: created.ID, Expires: expires}); err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}
	}

	deleted, err := adapter.DeleteUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
	if deleted == nil || deleted.Email != "cascade@example.com" {
		t.Fatalf("expected tombstone echo of deleted user, got %+v", deleted)
	}

	for _, providerAccountID := range []string{"acct-1", "acct-2"} {
		user, err := adapter.GetUserByAccount(ctx, "github", providerAccountID)
		if err != nil || user != nil {
			t.Fatalf("expected account %q gone, got %+v, %v", providerAccountID, user, err)
		}
	}
	for _, token := range []string{"cascade-sess-1", "cascade-sess-2"} {
		session, user, err := adapter.GetSessionAndUser(ctx, token)
		if err != nil || session != nil || user != nil {
			t.Fatalf("expected session %q gone, got %+v, %+v, %v", token, session, user, err)
		}
	}
}

func testLinkAccountIdempotent(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	created := mustCreateUser(t, adapter, store.User{Email: "link@example.com"})

	account := store.Account{
		UserID:            created.ID,
		Type:              "oauth",
		Provider:          "github",
		ProviderAccountID: "gh-77",
		AccessToken:       "at-1",
	}
	if err := adapter.LinkAccount(ctx, account); err != nil {
		t.Fatalf("LinkAccount returned error: %v", err)
	}
	account.AccessToken = "at-2"
	if err := adapter.LinkAccount(ctx, account); err != nil {
		t.Fatalf("second identical LinkAccount returned error: %v", err)
	}

	owner, err := adapter.GetUserByAccount(ctx, "github", "gh-77")
	if err != nil {
		t.Fatalf("GetUserByAccount returned error: %v", err)
	}
	if owner == nil || owner.ID != created.ID {
		t.Fatalf("expected owner %q, got %+v", created.ID, owner)
	}

	unlinked, err := adapter.UnlinkAccount(ctx, "github", "gh-77")
	if err != nil {
		t.Fatalf("UnlinkAccount returned error: %v", err)
	}
	if unlinked == nil || unlinked.AccessToken != "at-2" {
		t.Fatalf("expected exactly one merged account, got %+v", unlinked)
	}
	if again, err := adapter.UnlinkAccount(ctx, "github", "gh-77"); err != nil || again != nil {
		t.Fatalf("expected no duplicate account, got %+v, %v", again, err)
	}
}

func testLinkAccountConflict(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	first := mustCreateUser(t, adapter, store.User{Email: "first@example.com"})
	second := mustCreateUser(t, adapter, store.User{Email: "second@example.com"})

	account := store.Account{UserID: first.ID, Type: "oauth", Provider: "gitlab", ProviderAccountID: "gl-1"}
	if err := adapter.LinkAccount(ctx, account); err != nil {
		t.Fatalf("LinkAccount returned error: %v", err)
	}

	account.UserID = second.ID
	if err := adapter.LinkAccount(ctx, account); err == nil {
		t.Fatal("expected constraint violation linking the pair to a second user")
	}

	owner, err := adapter.GetUserByAccount(ctx, "gitlab", "gl-1")
	if err != nil {
		t.Fatalf("GetUserByAccount returned error: %v", err)
	}
	if owner == nil || owner.ID != first.ID {
		t.Fatalf("expected ownership to remain with %q, got %+v", first.ID, owner)
	}
}

func testUnlinkAccount(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	created := mustCreateUser(t, adapter, store.User{Email: "unlink@example.com"})

	account := store.Account{
		UserID:            created.ID,
		Type:              "oauth",
		Provider:          "google",
		ProviderAccountID: "g-9",
		RefreshToken:      "rt",
		Scope:             "openid email",
	}
	if err := adapter.LinkAccount(ctx, account); err != nil {
		t.Fatalf("LinkAccount returned error: %v", err)
	}

	unlinked, err := adapter.UnlinkAccount(ctx, "google", "g-9")
	if err != nil {
		t.Fatalf("UnlinkAccount returned error: %v", err)
	}
	if unlinked == nil || unlinked.UserID != created.ID || unlinked.RefreshToken != "rt" {
		t.Fatalf("expected prior account fields, got %+v", unlinked)
	}

	user, err := adapter.GetUser(ctx, created.ID)
	if err != nil || user == nil {
		t.Fatalf("expected user to survive unlink, got %+v, %v", user, err)
	}
}

func testSessionLifecycle(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	created := mustCreateUser(t, adapter, store.User{Email: "sess@example.com"})

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	session := store.Session{SessionToken: "sess-tok", UserID: created.ID, Expires: expires}
	if _, err := adapter.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	gotSession, gotUser, err := adapter.GetSessionAndUser(ctx, "sess-tok")
	if err != nil {
		t.Fatalf("GetSessionAndUser returned error: %v", err)
	}
	if gotSession == nil || gotUser == nil {
		t.Fatalf("expected matched pair, got session=%+v user=%+v", gotSession, gotUser)
	}
	if gotSession.UserID != created.ID || gotUser.ID != created.ID {
		t.Fatalf("session and user disagree on owner: %+v vs %+v", gotSession, gotUser)
	}
	if !gotSession.Expires.Equal(expires) {
		t.Fatalf("expected expires %v, got %v", expires, gotSession.Expires)
	}

	later := expires.Add(time.Hour)
	updated, err := adapter.UpdateSession(ctx, "sess-tok", store.SessionPatch{Expires: &later})
	if err != nil {
		t.Fatalf("UpdateSession returned error: %v", err)
	}
	if updated == nil || !updated.Expires.Equal(later) {
		t.Fatalf("expected merged expiry %v, got %+v", later, updated)
	}
	if updated.UserID != created.ID {
		t.Fatalf("expected untouched userID, got %q", updated.UserID)
	}

	deleted, err := adapter.DeleteSession(ctx, "sess-tok")
	if err != nil {
		t.Fatalf("DeleteSession returned error: %v", err)
	}
	if deleted == nil || deleted.SessionToken != "sess-tok" {
		t.Fatalf("expected tombstone echo of session, got %+v", deleted)
	}
	session2, user2, err := adapter.GetSessionAndUser(ctx, "sess-tok")
	if err != nil || session2 != nil || user2 != nil {
		t.Fatalf("expected session gone, got %+v, %+v, %v", session2, user2, err)
	}
}

func testDuplicateSessionToken(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	created := mustCreateUser(t, adapter, store.User{Email: "sess-dup@example.com"})

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	session := store.Session{SessionToken: "dup-tok", UserID: created.ID, Expires: expires}
	if _, err := adapter.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	session.Expires = expires.Add(time.Hour)
	_, err := adapter.CreateSession(ctx, session)
	if err == nil {
		t.Fatal("expected constraint violation for duplicate session token")
	}
	if !store.IsConstraint(err) {
		t.Fatalf("expected constraint violation, got %v", err)
	}

	// The original session is intact.
	got, _, err := adapter.GetSessionAndUser(ctx, "dup-tok")
	if err != nil || got == nil {
		t.Fatalf("GetSessionAndUser returned %+v, %v", got, err)
	}
	if !got.Expires.Equal(expires) {
		t.Fatalf("expected original expiry %v, got %v", expires, got.Expires)
	}
}

func testLazySessionExpiry(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	created := mustCreateUser(t, adapter, store.User{Email: "expired@example.com"})

	expired := store.Session{
		SessionToken: "stale-tok",
		UserID:       created.ID,
		Expires:      time.Now().Add(-time.Minute).UTC().Truncate(time.Second),
	}
	if _, err := adapter.CreateSession(ctx, expired); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	session, user, err := adapter.GetSessionAndUser(ctx, "stale-tok")
	if err != nil {
		t.Fatalf("GetSessionAndUser returned error: %v", err)
	}
	if session != nil || user != nil {
		t.Fatalf("expected nil pair for expired session, got %+v, %+v", session, user)
	}

	// The purge is real: a direct existence check also misses.
	deleted, err := adapter.DeleteSession(ctx, "stale-tok")
	if err != nil || deleted != nil {
		t.Fatalf("expected purged session, got %+v, %v", deleted, err)
	}
}

func testVerificationSingleUse(t *testing.T, adapter store.Adapter) {
	ctx := context.Background()
	expires := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)

	token := store.VerificationToken{Identifier: "ada@example.com", Token: "magic", Expires: expires}
	if _, err := adapter.CreateVerificationToken(ctx, token); err != nil {
		t.Fatalf("CreateVerificationToken returned error: %v", err)
	}
	// Upsert: creating again with a new expiry replaces the record.
	bumped := token
	bumped.Expires = expires.Add(time.Hour)
	if _, err := adapter.CreateVerificationToken(ctx, bumped); err != nil {
		t.Fatalf("upsert CreateVerificationToken returned error: %v", err)
	}

	used, err := adapter.UseVerificationToken(ctx, "ada@example.com", "magic")
	if err != nil {
		t.Fatalf("UseVerificationToken returned error: %v", err)
	}
	if used == nil {
		t.Fatal("expected token fields on first use, got nil")
	}
	if !used.Expires.Equal(bumped.Expires) {
		t.Fatalf("expected upserted expiry %v, got %v", bumped.Expires, used.Expires)
	}

	again, err := adapter.UseVerificationToken(ctx, "ada@example.com", "magic")
	if err != nil {
		t.Fatalf("second UseVerificationToken returned error: %v", err)
	}
	if again != nil {
		t.Fatalf("expected nil on token reuse, got %+v", again)
	}
}
