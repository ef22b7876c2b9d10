// Package store defines the persistence contract the authentication
// framework programs against. Backends under this package implement the
// Adapter interface over their own storage; the framework never issues
// queries directly.
package store

import (
	"context"
	"time"
)

// Adapter is the storage-agnostic persistence contract for Users,
// Accounts, Sessions, and VerificationTokens.
//
// Every lookup and every delete of a nonexistent record reports
// "not found" as a nil result, never as an error. Constraint violations
// and store failures are returned as errors and are never swallowed.
type Adapter interface {
	// CreateUser persists a new user. The ID is assigned by the
	// adapter's identifier generator before the write when the caller
	// left it empty, so the canonical ID is known synchronously.
	// A duplicate non-empty email is a constraint violation.
	CreateUser(ctx context.Context, user User) (User, error)

	// GetUser returns the user with the given ID, or nil.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByEmail returns the user with the given email, or nil.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByAccount traverses the ownership relationship from the
	// account identified by (provider, providerAccountID) to its owning
	// user. Returns nil when no such account exists.
	GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*User, error)

	// UpdateUser merges the supplied patch fields into the stored user
	// and returns the post-update record, or nil when the user does not
	// exist. Unsupplied fields keep their prior values.
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)

	// DeleteUser removes the user and, in the same atomic unit, every
	// account and session owned by it. Returns the deleted user's prior
	// fields, or nil when the user does not exist.
	DeleteUser(ctx context.Context, id string) (*User, error)

	// LinkAccount upserts the account keyed by
	// (Provider, ProviderAccountID) and ensures the ownership
	// relationship to account.UserID exists. Calling it twice with the
	// same data is safe; re-linking the pair to a different user is a
	// constraint violation. The user must already exist.
	LinkAccount(ctx context.Context, account Account) error

	// UnlinkAccount removes the account identified by
	// (provider, providerAccountID) and returns its prior fields, or
	// nil when no such account exists.
	UnlinkAccount(ctx context.Context, provider, providerAccountID string) (*Account, error)

	// CreateSession persists a new session. A duplicate session token
	// is a constraint violation.
	CreateSession(ctx context.Context, session Session) (Session, error)

	// GetSessionAndUser returns the session with the given token
	// together with its owning user. A session whose Expires is in the
	// past relative to the lookup is purged first. The result is either
	// a matched pair or nil for both halves, never a half pair.
	GetSessionAndUser(ctx context.Context, sessionToken string) (*Session, *User, error)

	// UpdateSession merges the supplied patch fields into the stored
	// session and returns the post-update record, or nil when the
	// session does not exist.
	UpdateSession(ctx context.Context, sessionToken string, patch SessionPatch) (*Session, error)

	// DeleteSession removes the session and returns its prior fields,
	// or nil when no such session exists.
	DeleteSession(ctx context.Context, sessionToken string) (*Session, error)

	// CreateVerificationToken upserts the token keyed by
	// (Identifier, Token).
	CreateVerificationToken(ctx context.Context, token VerificationToken) (VerificationToken, error)

	// UseVerificationToken atomically finds and deletes the token keyed
	// by (identifier, token) and returns its prior fields, or nil when
	// no match exists. A second call with the same pair returns nil.
	UseVerificationToken(ctx context.Context, identifier, token string) (*VerificationToken, error)
}

// Maintainer is implemented by backends that support batch removal of
// expired records, complementing the lazy purge performed by
// GetSessionAndUser.
type Maintainer interface {
	// PurgeExpired removes every session and verification token whose
	// expiry is before now and reports how many of each were removed.
	PurgeExpired(ctx context.Context, now time.Time) (sessions, tokens int64, err error)
}
