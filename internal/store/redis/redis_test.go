package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authstore/internal/store"
	"authstore/internal/store/storetest"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, opts...)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Adapter {
		return newTestStore(t)
	})
}

func TestCreateUserUsesInjectedGenerator(t *testing.T) {
	s := newTestStore(t, WithIDGenerator(func() string { return "fixed-id" }))

	created, err := s.CreateUser(context.Background(), store.User{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", created.ID)
}

func TestCreateSessionSetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := New(client)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, store.User{Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, store.Session{
		SessionToken: "tok-1",
		UserID:       user.ID,
		Expires:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	ttl := client.TTL(ctx, sessionKey("tok-1")).Val()
	assert.Greater(t, ttl, time.Duration(0), "live sessions must carry a TTL")

	// Past the expiry the key is gone without any purge pass.
	mr.FastForward(2 * time.Hour)
	session, owner, err := s.GetSessionAndUser(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Nil(t, owner)
}

func TestLinkAccountLosesClaimToConcurrentWriter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := New(client)
	ctx := context.Background()

	winner, err := s.CreateUser(ctx, store.User{Email: "winner@example.com"})
	require.NoError(t, err)
	loser, err := s.CreateUser(ctx, store.User{Email: "loser@example.com"})
	require.NoError(t, err)

	// The pair key appears after the loser's user check, as it would
	// when a concurrent link wins the SetNX claim first.
	data, err := json.Marshal(newAccountRecord(store.Account{
		UserID:            winner.ID,
		Type:              "oauth",
		Provider:          "github",
		ProviderAccountID: "gh-race",
	}))
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, accountKey("github", "gh-race"), data, 0).Err())

	err = s.LinkAccount(ctx, store.Account{
		UserID:            loser.ID,
		Type:              "oauth",
		Provider:          "github",
		ProviderAccountID: "gh-race",
	})
	require.Error(t, err)
	assert.True(t, store.IsConstraint(err))

	owner, err := s.GetUserByAccount(ctx, "github", "gh-race")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, winner.ID, owner.ID, "the first claim must keep the pair")
}

func TestPurgeExpiredSweepsTokensOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateVerificationToken(ctx, store.VerificationToken{
		Identifier: "ada@example.com",
		Token:      "stale",
		Expires:    time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = s.CreateVerificationToken(ctx, store.VerificationToken{
		Identifier: "ada@example.com",
		Token:      "fresh",
		Expires:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	sessions, tokens, err := s.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), sessions, "session expiry rides on TTLs, not the sweep")
	assert.Equal(t, int64(1), tokens)

	kept, err := s.UseVerificationToken(ctx, "ada@example.com", "fresh")
	require.NoError(t, err)
	assert.NotNil(t, kept, "unexpired tokens survive the sweep")
}

func TestDeleteUserReleasesEmailIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, store.User{Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = s.DeleteUser(ctx, user.ID)
	require.NoError(t, err)

	again, err := s.CreateUser(ctx, store.User{Email: "ada@example.com"})
	require.NoError(t, err, "deleting a user must free its email for reuse")
	assert.NotEqual(t, user.ID, again.ID)
}
