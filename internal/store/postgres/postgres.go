// Package postgres implements the store.Adapter contract on PostgreSQL.
// The schema ships as embedded goose migrations applied by
// internal/platform/migrate.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"authstore/internal/store"
)

var _ store.Adapter = (*Store)(nil)
var _ store.Maintainer = (*Store)(nil)

// Store implements the adapter contract over a sqlx database handle.
type Store struct {
	db  *sqlx.DB
	gen store.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the default UUID generator.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

// New wraps an already-open database handle.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, gen: store.NewID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const userColumns = `id, name, email, email_verified, image`

// CreateUser inserts a new user, assigning the ID when absent.
func (s *Store) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	const query = `
		INSERT INTO users (id, name, email, email_verified, image)
		VALUES ($1, $2, $3, $4, $5)
	`

	if user.ID == "" {
		user.ID = s.gen()
	}
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.EmailVerified, user.Image)
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", constraintAware(err))
	}
	return user, nil
}

// GetUser looks up a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.getUser(ctx, query, id)
}

// GetUserByEmail looks up a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.getUser(ctx, query, email)
}

// GetUserByAccount looks up the owner of the account identified by
// (provider, providerAccountID).
func (s *Store) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*store.User, error) {
	const query = `
		SELECT u.id, u.name, u.email, u.email_verified, u.image
		FROM users u
		JOIN accounts a ON a.user_id = u.id
		WHERE a.provider = $1 AND a.provider_account_id = $2
	`
	return s.getUser(ctx, query, provider, providerAccountID)
}

func (s *Store) getUser(ctx context.Context, query string, args ...any) (*store.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toUser(), nil
}

// UpdateUser merges the supplied patch fields and returns the
// post-update record.
func (s *Store) UpdateUser(ctx context.Context, id string, patch store.UserPatch) (*store.User, error) {
	if patch.IsZero() {
		return s.GetUser(ctx, id)
	}

	sets := make([]string, 0, 4)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.EmailVerified != nil {
		add("email_verified", *patch.EmailVerified)
	}
	if patch.Image != nil {
		add("image", *patch.Image)
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), userColumns,
	)

	var row userRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user: %w", constraintAware(err))
	}
	return row.toUser(), nil
}

// DeleteUser removes the user and returns the prior record. Accounts
// and sessions go with it through the schema's ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id string) (*store.User, error) {
	const query = `DELETE FROM users WHERE id = $1 RETURNING ` + userColumns

	var row userRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return row.toUser(), nil
}

// LinkAccount upserts the account keyed by the provider pair. The
// conditional upsert only merges when the pair already belongs to the
// same user, so a pair held by another user produces no row.
func (s *Store) LinkAccount(ctx context.Context, account store.Account) error {
	const query = `
		INSERT INTO accounts (user_id, type, provider, provider_account_id, access_token, refresh_token, token_type, scope, id_token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider, provider_account_id) DO UPDATE SET
			type = EXCLUDED.type,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			scope = EXCLUDED.scope,
			id_token = EXCLUDED.id_token,
			expires_at = EXCLUDED.expires_at
		WHERE accounts.user_id = EXCLUDED.user_id
		RETURNING user_id
	`

	var owner string
	err := s.db.GetContext(ctx, &owner, query,
		account.UserID,
		account.Type,
		account.Provider,
		account.ProviderAccountID,
		account.AccessToken,
		account.RefreshToken,
		account.TokenType,
		account.Scope,
		account.IDToken,
		account.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("link account %s/%s: %w",
			account.Provider, account.ProviderAccountID, store.ErrConstraint)
	}
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

const accountColumns = `user_id, type, provider, provider_account_id, access_token, refresh_token, token_type, scope, id_token, expires_at`

// UnlinkAccount removes the account and returns its prior fields.
func (s *Store) UnlinkAccount(ctx context.Context, provider, providerAccountID string) (*store.Account, error) {
	const query = `
		DELETE FROM accounts
		WHERE provider = $1 AND provider_account_id = $2
		RETURNING ` + accountColumns

	var row accountRow
	if err := s.db.GetContext(ctx, &row, query, provider, providerAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("unlink account: %w", err)
	}
	return row.toAccount(), nil
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, session store.Session) (store.Session, error) {
	const query = `
		INSERT INTO sessions (session_token, user_id, expires)
		VALUES ($1, $2, $3)
	`

	_, err := s.db.ExecContext(ctx, query, session.SessionToken, session.UserID, session.Expires)
	if err != nil {
		return store.Session{}, fmt.Errorf("create session: %w", constraintAware(err))
	}
	return session, nil
}

// GetSessionAndUser purges the session when expired, then re-reads it
// joined with its owner, all inside one transaction.
func (s *Store) GetSessionAndUser(ctx context.Context, sessionToken string) (*store.Session, *store.User, error) {
	const purge = `DELETE FROM sessions WHERE session_token = $1 AND expires < $2`
	const query = `
		SELECT
			s.session_token, s.user_id, s.expires,
			u.id, u.name, u.email, u.email_verified, u.image
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_token = $1
	`

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("get session and user: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, purge, sessionToken, time.Now()); err != nil {
		return nil, nil, fmt.Errorf("get session and user: purge: %w", err)
	}

	var row sessionUserRow
	if err := tx.GetContext(ctx, &row, query, sessionToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := tx.Commit(); err != nil {
				return nil, nil, fmt.Errorf("get session and user: commit purge: %w", err)
			}
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get session and user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("get session and user: commit: %w", err)
	}
	return row.toSession(), row.toUser(), nil
}

const sessionColumns = `session_token, user_id, expires`

// UpdateSession merges the supplied patch fields and returns the
// post-update record.
func (s *Store) UpdateSession(ctx context.Context, sessionToken string, patch store.SessionPatch) (*store.Session, error) {
	if patch.IsZero() {
		return s.getSession(ctx, sessionToken)
	}

	sets := make([]string, 0, 2)
	args := []any{sessionToken}
	if patch.UserID != nil {
		args = append(args, *patch.UserID)
		sets = append(sets, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if patch.Expires != nil {
		args = append(args, *patch.Expires)
		sets = append(sets, fmt.Sprintf("expires = $%d", len(args)))
	}

	query := fmt.Sprintf(
		`UPDATE sessions SET %s WHERE session_token = $1 RETURNING %s`,
		strings.Join(sets, ", "), sessionColumns,
	)

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update session: %w", err)
	}
	return row.toSession(), nil
}

func (s *Store) getSession(ctx context.Context, sessionToken string) (*store.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE session_token = $1`

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, sessionToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.toSession(), nil
}

// DeleteSession removes the session and returns its prior fields.
func (s *Store) DeleteSession(ctx context.Context, sessionToken string) (*store.Session, error) {
	const query = `DELETE FROM sessions WHERE session_token = $1 RETURNING ` + sessionColumns

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, sessionToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return row.toSession(), nil
}

// CreateVerificationToken upserts the token keyed by
// (identifier, token).
func (s *Store) CreateVerificationToken(ctx context.Context, token store.VerificationToken) (store.VerificationToken, error) {
	const query = `
		INSERT INTO verification_tokens (identifier, token, expires)
		VALUES ($1, $2, $3)
		ON CONFLICT (identifier, token) DO UPDATE SET expires = EXCLUDED.expires
	`

	_, err := s.db.ExecContext(ctx, query, token.Identifier, token.Token, token.Expires)
	if err != nil {
		return store.VerificationToken{}, fmt.Errorf("create verification token: %w", err)
	}
	return token, nil
}

// UseVerificationToken atomically consumes the token.
func (s *Store) UseVerificationToken(ctx context.Context, identifier, token string) (*store.VerificationToken, error) {
	const query = `
		DELETE FROM verification_tokens
		WHERE identifier = $1 AND token = $2
		RETURNING identifier, token, expires
	`

	var row verificationTokenRow
	if err := s.db.GetContext(ctx, &row, query, identifier, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("use verification token: %w", err)
	}
	return row.toToken(), nil
}

// PurgeExpired removes expired sessions and verification tokens.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	sessions, err := s.purge(ctx, `DELETE FROM sessions WHERE expires < $1`, now)
	if err != nil {
		return 0, 0, fmt.Errorf("purge sessions: %w", err)
	}
	tokens, err := s.purge(ctx, `DELETE FROM verification_tokens WHERE expires < $1`, now)
	if err != nil {
		return sessions, 0, fmt.Errorf("purge verification tokens: %w", err)
	}
	return sessions, tokens, nil
}

func (s *Store) purge(ctx context.Context, query string, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// constraintAware joins store.ErrConstraint onto driver unique-key
// violations so callers can recognise them without importing pq, while
// keeping the original error inspectable.
func constraintAware(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return errors.Join(store.ErrConstraint, err)
	}
	return err
}
