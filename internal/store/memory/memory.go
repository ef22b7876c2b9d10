// Package memory implements the store.Adapter contract in process
// memory, for local development and as the conformance baseline.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authstore/internal/store"
)

var _ store.Adapter = (*Store)(nil)
var _ store.Maintainer = (*Store)(nil)

type accountKey struct {
	provider          string
	providerAccountID string
}

type tokenKey struct {
	identifier string
	token      string
}

// Store keeps all records in maps guarded by a single RWMutex.
type Store struct {
	mu       sync.RWMutex
	gen      store.IDGenerator
	users    map[string]store.User
	emails   map[string]string // email -> user ID
	accounts map[accountKey]store.Account
	sessions map[string]store.Session
	tokens   map[tokenKey]store.VerificationToken
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the default UUID generator.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

// New constructs an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		gen:      store.NewID,
		users:    make(map[string]store.User),
		emails:   make(map[string]string),
		accounts: make(map[accountKey]store.Account),
		sessions: make(map[string]store.Session),
		tokens:   make(map[tokenKey]store.VerificationToken),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser stores a new user, assigning the ID when absent.
func (s *Store) CreateUser(_ context.Context, user store.User) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = s.gen()
	}
	if _, ok := s.users[user.ID]; ok {
		return store.User{}, fmt.Errorf("create user %q: %w", user.ID, store.ErrConstraint)
	}
	if user.Email != "" {
		if _, ok := s.emails[user.Email]; ok {
			return store.User{}, fmt.Errorf("create user email %q: %w", user.Email, store.ErrConstraint)
		}
		s.emails[user.Email] = user.ID
	}
	s.users[user.ID] = user
	return user, nil
}

// GetUser returns the user with the given ID, or nil.
func (s *Store) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetUserByEmail returns the user with the given email, or nil.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, nil
	}
	user := s.users[id]
	return &user, nil
}

// GetUserByAccount returns the user owning the account identified by
// (provider, providerAccountID), or nil.
func (s *Store) GetUserByAccount(_ context.Context, provider, providerAccountID string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountKey{provider, providerAccountID}]
	if !ok {
		return nil, nil
	}
	user, ok := s.users[account.UserID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// UpdateUser merges the patch into the stored user.
func (s *Store) UpdateUser(_ context.Context, id string, patch store.UserPatch) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return nil, nil
	}

	updated := patch.Apply(current)
	if updated.Email != current.Email {
		if owner, taken := s.emails[updated.Email]; taken && owner != id {
			return nil, fmt.Errorf("update user email %q: %w", updated.Email, store.ErrConstraint)
		}
		delete(s.emails, current.Email)
		if updated.Email != "" {
			s.emails[updated.Email] = id
		}
	}
	s.users[id] = updated
	return &updated, nil
}

// DeleteUser removes the user and cascades to its accounts and
// sessions, returning the deleted user.
func (s *Store) DeleteUser(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}

	delete(s.users, id)
	delete(s.emails, user.Email)
	for key, account := range s.accounts {
		if account.UserID == id {
			delete(s.accounts, key)
		}
	}
	for token, session := range s.sessions {
		if session.UserID == id {
			delete(s.sessions, token)
		}
	}
	return &user, nil
}

// LinkAccount upserts the account and its ownership relationship.
func (s *Store) LinkAccount(_ context.Context, account store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[account.UserID]; !ok {
		return fmt.Errorf("link account: user %q not found", account.UserID)
	}
	key := accountKey{account.Provider, account.ProviderAccountID}
	if existing, ok := s.accounts[key]; ok && existing.UserID != account.UserID {
		return fmt.Errorf("link account %s/%s: %w", account.Provider, account.ProviderAccountID, store.ErrConstraint)
	}
	s.accounts[key] = account
	return nil
}

// UnlinkAccount removes and returns the account, or nil.
func (s *Store) UnlinkAccount(_ context.Context, provider, providerAccountID string) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey{provider, providerAccountID}
	account, ok := s.accounts[key]
	if !ok {
		return nil, nil
	}
	delete(s.accounts, key)
	return &account, nil
}

// CreateSession stores a new session.
func (s *Store) CreateSession(_ context.Context, session store.Session) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionToken]; ok {
		return store.Session{}, fmt.Errorf("create session: %w", store.ErrConstraint)
	}
	s.sessions[session.SessionToken] = session
	return session, nil
}

// GetSessionAndUser returns the session and its owner, purging the
// session first when it has expired.
func (s *Store) GetSessionAndUser(_ context.Context, sessionToken string) (*store.Session, *store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionToken]
	if !ok {
		return nil, nil, nil
	}
	if session.Expired(time.Now()) {
		delete(s.sessions, sessionToken)
		return nil, nil, nil
	}
	user, ok := s.users[session.UserID]
	if !ok {
		return nil, nil, nil
	}
	return &session, &user, nil
}

// UpdateSession merges the patch into the stored session.
func (s *Store) UpdateSession(_ context.Context, sessionToken string, patch store.SessionPatch) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[sessionToken]
	if !ok {
		return nil, nil
	}
	updated := patch.Apply(current)
	s.sessions[sessionToken] = updated
	return &updated, nil
}

// DeleteSession removes and returns the session, or nil.
func (s *Store) DeleteSession(_ context.Context, sessionToken string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionToken]
	if !ok {
		return nil, nil
	}
	delete(s.sessions, sessionToken)
	return &session, nil
}

// CreateVerificationToken upserts the token.
func (s *Store) CreateVerificationToken(_ context.Context, token store.VerificationToken) (store.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[tokenKey{token.Identifier, token.Token}] = token
	return token, nil
}

// UseVerificationToken consumes the token, returning its prior fields
// or nil when already consumed or never created.
func (s *Store) UseVerificationToken(_ context.Context, identifier, token string) (*store.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{identifier, token}
	stored, ok := s.tokens[key]
	if !ok {
		return nil, nil
	}
	delete(s.tokens, key)
	return &stored, nil
}

// PurgeExpired removes every expired session and verification token.
func (s *Store) PurgeExpired(_ context.Context, now time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sessions, tokens int64
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			sessions++
		}
	}
	for key, stored := range s.tokens {
		if stored.Expires.Before(now) {
			delete(s.tokens, key)
			tokens++
		}
	}
	return sessions, tokens, nil
}
