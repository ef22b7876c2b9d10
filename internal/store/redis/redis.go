// Package redis implements the store.Adapter contract on Redis. Records
// are JSON values under prefixed keys; uniqueness rides on SetNX;
// ownership is tracked in per-user index sets so user deletion can
// cascade. Sessions carry a TTL derived from their expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authstore/internal/store"
)

var _ store.Adapter = (*Store)(nil)
var _ store.Maintainer = (*Store)(nil)

const (
	userPrefix         = "user:"
	userEmailPrefix    = "user:email:"
	accountPrefix      = "account:"
	sessionPrefix      = "session:"
	verificationPrefix = "verification:"
)

// Store implements the adapter contract over a go-redis client.
type Store struct {
	client *redis.Client
	gen    store.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the default UUID generator.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

// New wraps an already-open client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, gen: store.NewID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func userKey(id string) string          { return userPrefix + id }
func emailKey(email string) string      { return userEmailPrefix + email }
func userAccountsKey(id string) string  { return userPrefix + id + ":accounts" }
func userSessionsKey(id string) string  { return userPrefix + id + ":sessions" }
func accountKey(provider, providerAccountID string) string {
	return accountPrefix + provider + ":" + providerAccountID
}
func sessionKey(token string) string { return sessionPrefix + token }
func verificationKey(identifier, token string) string {
	return verificationPrefix + identifier + ":" + token
}

// CreateUser stores a new user, claiming the email index first so a
// duplicate email fails before any record is written.
func (s *Store) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if user.ID == "" {
		user.ID = s.gen()
	}
	if user.Email != "" {
		claimed, err := s.client.SetNX(ctx, emailKey(user.Email), user.ID, 0).Result()
		if err != nil {
			return store.User{}, fmt.Errorf("create user: claim email: %w", err)
		}
		if !claimed {
			return store.User{}, fmt.Errorf("create user email %q: %w", user.Email, store.ErrConstraint)
		}
	}
	if err := s.setJSON(ctx, userKey(user.ID), newUserRecord(user), 0); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetUser returns the user with the given ID, or nil.
func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	var record userRecord
	found, err := s.getJSON(ctx, userKey(id), &record)
	if err != nil || !found {
		return nil, err
	}
	return record.toUser(), nil
}

// GetUserByEmail resolves the email index, then loads the user.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	id, err := s.client.Get(ctx, emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUserByAccount resolves the account record, then loads its owner.
func (s *Store) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*store.User, error) {
	var record accountRecord
	found, err := s.getJSON(ctx, accountKey(provider, providerAccountID), &record)
	if err != nil || !found {
		return nil, err
	}
	return s.GetUser(ctx, record.UserID)
}

// UpdateUser merges the patch into the stored user, moving the email
// index when the email changes.
func (s *Store) UpdateUser(ctx context.Context, id string, patch store.UserPatch) (*store.User, error) {
	current, err := s.GetUser(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	updated := patch.Apply(*current)
	if updated.Email != current.Email {
		if updated.Email != "" {
			claimed, err := s.client.SetNX(ctx, emailKey(updated.Email), id, 0).Result()
			if err != nil {
				return nil, fmt.Errorf("update user: claim email: %w", err)
			}
			if !claimed {
				return nil, fmt.Errorf("update user email %q: %w", updated.Email, store.ErrConstraint)
			}
		}
		if current.Email != "" {
			if err := s.client.Del(ctx, emailKey(current.Email)).Err(); err != nil {
				return nil, fmt.Errorf("update user: release email: %w", err)
			}
		}
	}
	if err := s.setJSON(ctx, userKey(id), newUserRecord(updated), 0); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &updated, nil
}

// DeleteUser removes the user record, its email index, and every owned
// account and session in one pipeline.
func (s *Store) DeleteUser(ctx context.Context, id string) (*store.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}

	accounts, err := s.client.SMembers(ctx, userAccountsKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("delete user: list accounts: %w", err)
	}
	sessions, err := s.client.SMembers(ctx, userSessionsKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("delete user: list sessions: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, member := range accounts {
		pipe.Del(ctx, accountPrefix+member)
	}
	for _, token := range sessions {
		pipe.Del(ctx, sessionKey(token))
	}
	if user.Email != "" {
		pipe.Del(ctx, emailKey(user.Email))
	}
	pipe.Del(ctx, userKey(id), userAccountsKey(id), userSessionsKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return user, nil
}

// LinkAccount upserts the account record and indexes it on its owner.
// A fresh pair is claimed with SetNX, the same pattern CreateUser uses
// for the email index, so two concurrent links of the same pair cannot
// both win.
func (s *Store) LinkAccount(ctx context.Context, account store.Account) error {
	key := accountKey(account.Provider, account.ProviderAccountID)

	owned, err := s.client.Exists(ctx, userKey(account.UserID)).Result()
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	if owned == 0 {
		return fmt.Errorf("link account: user %q not found", account.UserID)
	}

	data, err := json.Marshal(newAccountRecord(account))
	if err != nil {
		return fmt.Errorf("link account: marshal: %w", err)
	}
	claimed, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("link account: claim pair: %w", err)
	}
	if !claimed {
		// The pair already exists: only its current owner may re-link
		// and refresh the token fields.
		var existing accountRecord
		found, err := s.getJSON(ctx, key, &existing)
		if err != nil {
			return fmt.Errorf("link account: %w", err)
		}
		if found && existing.UserID != account.UserID {
			return fmt.Errorf("link account %s/%s: %w",
				account.Provider, account.ProviderAccountID, store.ErrConstraint)
		}
		if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
			return fmt.Errorf("link account: %w", err)
		}
	}
	if err := s.client.SAdd(ctx, userAccountsKey(account.UserID), account.Provider+":"+account.ProviderAccountID).Err(); err != nil {
		return fmt.Errorf("link account: index: %w", err)
	}
	return nil
}

// UnlinkAccount removes the account record and its index entry.
func (s *Store) UnlinkAccount(ctx context.Context, provider, providerAccountID string) (*store.Account, error) {
	var record accountRecord
	found, err := s.getJSON(ctx, accountKey(provider, providerAccountID), &record)
	if err != nil || !found {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, accountKey(provider, providerAccountID))
	pipe.SRem(ctx, userAccountsKey(record.UserID), provider+":"+providerAccountID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("unlink account: %w", err)
	}
	return record.toAccount(), nil
}

// CreateSession stores a new session with a TTL derived from its
// expiry. An already-expired session is still written (without TTL) so
// the lazy purge in GetSessionAndUser observes and removes it.
func (s *Store) CreateSession(ctx context.Context, session store.Session) (store.Session, error) {
	data, err := json.Marshal(newSessionRecord(session))
	if err != nil {
		return store.Session{}, fmt.Errorf("create session: marshal: %w", err)
	}

	ttl := time.Until(session.Expires)
	if ttl < 0 {
		ttl = 0
	}
	created, err := s.client.SetNX(ctx, sessionKey(session.SessionToken), data, ttl).Result()
	if err != nil {
		return store.Session{}, fmt.Errorf("create session: %w", err)
	}
	if !created {
		return store.Session{}, fmt.Errorf("create session: %w", store.ErrConstraint)
	}
	if err := s.client.SAdd(ctx, userSessionsKey(session.UserID), session.SessionToken).Err(); err != nil {
		return store.Session{}, fmt.Errorf("create session: index: %w", err)
	}
	return session, nil
}

// GetSessionAndUser purges the session when expired, then returns it
// with its owner, or nil for both halves.
func (s *Store) GetSessionAndUser(ctx context.Context, sessionToken string) (*store.Session, *store.User, error) {
	var record sessionRecord
	found, err := s.getJSON(ctx, sessionKey(sessionToken), &record)
	if err != nil || !found {
		return nil, nil, err
	}

	session := record.toSession()
	if session.Expired(time.Now()) {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, sessionKey(sessionToken))
		pipe.SRem(ctx, userSessionsKey(session.UserID), sessionToken)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, nil, fmt.Errorf("get session and user: purge: %w", err)
		}
		return nil, nil, nil
	}

	user, err := s.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, nil
	}
	return session, user, nil
}

// UpdateSession merges the patch into the stored session, recomputing
// the TTL and moving the owner index when needed.
func (s *Store) UpdateSession(ctx context.Context, sessionToken string, patch store.SessionPatch) (*store.Session, error) {
	var record sessionRecord
	found, err := s.getJSON(ctx, sessionKey(sessionToken), &record)
	if err != nil || !found {
		return nil, err
	}

	current := record.toSession()
	updated := patch.Apply(*current)

	data, err := json.Marshal(newSessionRecord(updated))
	if err != nil {
		return nil, fmt.Errorf("update session: marshal: %w", err)
	}
	ttl := time.Until(updated.Expires)
	if ttl < 0 {
		ttl = 0
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sessionToken), data, ttl)
	if updated.UserID != current.UserID {
		pipe.SRem(ctx, userSessionsKey(current.UserID), sessionToken)
		pipe.SAdd(ctx, userSessionsKey(updated.UserID), sessionToken)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return &updated, nil
}

// DeleteSession removes the session record and its index entry.
func (s *Store) DeleteSession(ctx context.Context, sessionToken string) (*store.Session, error) {
	var record sessionRecord
	found, err := s.getJSON(ctx, sessionKey(sessionToken), &record)
	if err != nil || !found {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionToken))
	pipe.SRem(ctx, userSessionsKey(record.UserID), sessionToken)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return record.toSession(), nil
}

// CreateVerificationToken upserts the token record. Tokens carry no
// TTL: single-use consumption and the batch sweep handle their removal.
func (s *Store) CreateVerificationToken(ctx context.Context, token store.VerificationToken) (store.VerificationToken, error) {
	if err := s.setJSON(ctx, verificationKey(token.Identifier, token.Token), newVerificationRecord(token), 0); err != nil {
		return store.VerificationToken{}, fmt.Errorf("create verification token: %w", err)
	}
	return token, nil
}

// UseVerificationToken consumes the token with a single GETDEL.
func (s *Store) UseVerificationToken(ctx context.Context, identifier, token string) (*store.VerificationToken, error) {
	data, err := s.client.GetDel(ctx, verificationKey(identifier, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("use verification token: %w", err)
	}
	var record verificationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("use verification token: unmarshal: %w", err)
	}
	return record.toToken(), nil
}

// PurgeExpired sweeps expired verification tokens. Sessions expire via
// their native TTL and the lazy purge, so none are counted here.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	var tokens int64
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, verificationPrefix+"*", 100).Result()
		if err != nil {
			return 0, tokens, fmt.Errorf("purge verification tokens: %w", err)
		}
		for _, key := range keys {
			var record verificationRecord
			found, err := s.getJSON(ctx, key, &record)
			if err != nil || !found {
				continue
			}
			if record.Expires.Before(now) {
				if err := s.client.Del(ctx, key).Err(); err == nil {
					tokens++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return 0, tokens, nil
}

func (s *Store) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// getJSON loads and decodes a record, reporting found=false for a
// missing key.
func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}
