// Package neo4j implements the store.Adapter contract against a Neo4j
// property graph: entities are nodes, ownership is HAS_ACCOUNT and
// HAS_SESSION relationships, and all values cross the driver boundary
// through the coercion layer in this package.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"authstore/internal/store"
)

var _ store.Adapter = (*Store)(nil)
var _ store.Maintainer = (*Store)(nil)

// Store implements the adapter contract over a single driver session.
// Session lifecycle belongs to the caller; the store only issues units
// of work against it.
type Store struct {
	session Session
	run     cypherRunner
	gen     store.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the default UUID generator.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

// New wraps an already-open driver session.
func New(session Session, opts ...Option) *Store {
	s := &Store{
		session: session,
		run:     &sessionRunner{session: session},
		gen:     store.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newWithRunner is the test seam: it bypasses the driver session.
func newWithRunner(run cypherRunner, opts ...Option) *Store {
	s := &Store{run: run, gen: store.NewID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureConstraints creates the uniqueness constraints the contract
// relies on. Schema statements cannot run inside managed transactions,
// so they go through auto-commit Run.
func (s *Store) EnsureConstraints(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
		`CREATE CONSTRAINT user_email IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE`,
		`CREATE CONSTRAINT session_token IF NOT EXISTS FOR (s:Session) REQUIRE s.sessionToken IS UNIQUE`,
	}
	for _, statement := range statements {
		result, err := s.session.Run(ctx, statement, nil)
		if err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
	}
	return nil
}

// CreateUser creates a User node, assigning the ID when absent.
func (s *Store) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	const query = `
		CREATE (u:User)
		SET u += $data
		RETURN u{.*} AS user`

	if user.ID == "" {
		user.ID = s.gen()
	}
	row, err := s.run.WriteRecord(ctx, query, userProps(user))
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", constraintAware(err))
	}
	created := userFromProps(propMap(row, "user"))
	if created == nil {
		return store.User{}, fmt.Errorf("create user: no node returned")
	}
	return *created, nil
}

// GetUser returns the user with the given ID, or nil.
func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	const query = `MATCH (u:User {id: $id}) RETURN u{.*}`
	return s.readUser(ctx, query, map[string]any{"id": id})
}

// GetUserByEmail returns the user with the given email, or nil.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	const query = `MATCH (u:User {email: $email}) RETURN u{.*}`
	return s.readUser(ctx, query, map[string]any{"email": email})
}

// GetUserByAccount traverses the ownership relationship from the
// account node to its owning user.
func (s *Store) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*store.User, error) {
	const query = `
		MATCH (u:User)-[:HAS_ACCOUNT]->(:Account {provider: $provider, providerAccountId: $providerAccountId})
		RETURN u{.*}`
	return s.readUser(ctx, query, map[string]any{
		"provider":          provider,
		"providerAccountId": providerAccountID,
	})
}

func (s *Store) readUser(ctx context.Context, query string, params map[string]any) (*store.User, error) {
	value, err := s.run.ReadValue(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	props, _ := value.(map[string]any)
	return userFromProps(props), nil
}

// UpdateUser merges the supplied patch fields into the User node.
func (s *Store) UpdateUser(ctx context.Context, id string, patch store.UserPatch) (*store.User, error) {
	const query = `
		MATCH (u:User {id: $data.id})
		SET u += $data
		RETURN u{.*} AS user`

	props := map[string]any{"id": id}
	if patch.Name != nil {
		props["name"] = *patch.Name
	}
	if patch.Email != nil {
		props["email"] = *patch.Email
	}
	if patch.EmailVerified != nil {
		props["emailVerified"] = *patch.EmailVerified
	}
	if patch.Image != nil {
		props["image"] = *patch.Image
	}

	row, err := s.run.WriteRecord(ctx, query, props)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", constraintAware(err))
	}
	return userFromProps(propMap(row, "user")), nil
}

// DeleteUser removes the User node and every owned Account and Session
// node in the same unit of work, returning the user's prior fields.
func (s *Store) DeleteUser(ctx context.Context, id string) (*store.User, error) {
	const query = `
		MATCH (u:User {id: $data.id})
		WITH u, u{.*} AS props
		OPTIONAL MATCH (u)-[:HAS_ACCOUNT]->(a:Account)
		OPTIONAL MATCH (u)-[:HAS_SESSION]->(s:Session)
		DETACH DELETE u, a, s
		RETURN props AS user`

	row, err := s.run.WriteRecord(ctx, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return userFromProps(propMap(row, "user")), nil
}

// LinkAccount upserts the Account node keyed by the provider pair and
// ensures the HAS_ACCOUNT relationship. The guard clause yields no row
// when the pair already belongs to another user.
func (s *Store) LinkAccount(ctx context.Context, account store.Account) error {
	const query = `
		MATCH (u:User {id: $data.userId})
		MERGE (a:Account {provider: $data.provider, providerAccountId: $data.providerAccountId})
		WITH u, a
		OPTIONAL MATCH (other:User)-[:HAS_ACCOUNT]->(a)
		WHERE other.id <> u.id
		WITH u, a, other
		WHERE other IS NULL
		SET a += $data
		MERGE (u)-[:HAS_ACCOUNT]->(a)
		RETURN a{.*} AS account`

	row, err := s.run.WriteRecord(ctx, query, accountProps(account))
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	if row != nil {
		return nil
	}

	// No row: either the pair is owned by another user or the user is
	// missing. Look at the current owner to tell them apart.
	const ownerQuery = `
		MATCH (other:User)-[:HAS_ACCOUNT]->(:Account {provider: $provider, providerAccountId: $providerAccountId})
		RETURN other.id`
	owner, err := s.run.ReadValue(ctx, ownerQuery, map[string]any{
		"provider":          account.Provider,
		"providerAccountId": account.ProviderAccountID,
	})
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	if ownerID, ok := owner.(string); ok && ownerID != account.UserID {
		return fmt.Errorf("link account %s/%s: %w",
			account.Provider, account.ProviderAccountID, store.ErrConstraint)
	}
	return fmt.Errorf("link account: user %q not found", account.UserID)
}

// UnlinkAccount removes the Account node and returns its prior fields.
func (s *Store) UnlinkAccount(ctx context.Context, provider, providerAccountID string) (*store.Account, error) {
	const query = `
		MATCH (a:Account {provider: $data.provider, providerAccountId: $data.providerAccountId})
		WITH a, a{.*} AS props
		DETACH DELETE a
		RETURN props AS account`

	row, err := s.run.WriteRecord(ctx, query, map[string]any{
		"provider":          provider,
		"providerAccountId": providerAccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("unlink account: %w", err)
	}
	return accountFromProps(propMap(row, "account")), nil
}

// CreateSession creates a Session node owned by the given user.
func (s *Store) CreateSession(ctx context.Context, session store.Session) (store.Session, error) {
	const query = `
		MATCH (u:User {id: $data.userId})
		CREATE (s:Session)
		SET s += $data
		CREATE (u)-[:HAS_SESSION]->(s)
		RETURN s{.*} AS session`

	row, err := s.run.WriteRecord(ctx, query, sessionProps(session))
	if err != nil {
		return store.Session{}, fmt.Errorf("create session: %w", constraintAware(err))
	}
	created := sessionFromProps(propMap(row, "session"))
	if created == nil {
		return store.Session{}, fmt.Errorf("create session: user %q not found", session.UserID)
	}
	return *created, nil
}

// GetSessionAndUser purges the session when its expiry is past, then
// re-reads the session with its owner, inside one write unit of work.
func (s *Store) GetSessionAndUser(ctx context.Context, sessionToken string) (*store.Session, *store.User, error) {
	const query = `
		OPTIONAL MATCH (expired:Session {sessionToken: $data.sessionToken})
		WHERE datetime(expired.expires) < datetime($data.now)
		DETACH DELETE expired
		WITH 1 AS _
		OPTIONAL MATCH (u:User)-[:HAS_SESSION]->(s:Session {sessionToken: $data.sessionToken})
		RETURN s{.*} AS session, u{.*} AS user`

	row, err := s.run.WriteRecord(ctx, query, map[string]any{
		"sessionToken": sessionToken,
		"now":          time.Now(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get session and user: %w", err)
	}
	session := sessionFromProps(propMap(row, "session"))
	user := userFromProps(propMap(row, "user"))
	if session == nil || user == nil {
		// Never a half pair.
		return nil, nil, nil
	}
	return session, user, nil
}

// UpdateSession merges the supplied patch fields into the Session node,
// re-pointing the ownership relationship when the patch moves it to a
// different user.
func (s *Store) UpdateSession(ctx context.Context, sessionToken string, patch store.SessionPatch) (*store.Session, error) {
	const query = `
		MATCH (s:Session {sessionToken: $data.sessionToken})
		SET s += $data
		RETURN s{.*} AS session`
	const reassignQuery = `
		MATCH (s:Session {sessionToken: $data.sessionToken})
		MATCH (u:User {id: $data.userId})
		OPTIONAL MATCH (:User)-[owned:HAS_SESSION]->(s)
		DELETE owned
		MERGE (u)-[:HAS_SESSION]->(s)
		SET s += $data
		RETURN s{.*} AS session`

	props := map[string]any{"sessionToken": sessionToken}
	statement := query
	if patch.UserID != nil {
		props["userId"] = *patch.UserID
		statement = reassignQuery
	}
	if patch.Expires != nil {
		props["expires"] = *patch.Expires
	}

	row, err := s.run.WriteRecord(ctx, statement, props)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return sessionFromProps(propMap(row, "session")), nil
}

// DeleteSession removes the Session node and returns its prior fields.
func (s *Store) DeleteSession(ctx context.Context, sessionToken string) (*store.Session, error) {
	const query = `
		MATCH (s:Session {sessionToken: $data.sessionToken})
		WITH s, s{.*} AS props
		DETACH DELETE s
		RETURN props AS session`

	row, err := s.run.WriteRecord(ctx, query, map[string]any{"sessionToken": sessionToken})
	if err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return sessionFromProps(propMap(row, "session")), nil
}

// CreateVerificationToken upserts the VerificationToken node keyed by
// (identifier, token).
func (s *Store) CreateVerificationToken(ctx context.Context, token store.VerificationToken) (store.VerificationToken, error) {
	const query = `
		MERGE (v:VerificationToken {identifier: $data.identifier, token: $data.token})
		SET v += $data
		RETURN v{.*} AS token`

	row, err := s.run.WriteRecord(ctx, query, verificationTokenProps(token))
	if err != nil {
		return store.VerificationToken{}, fmt.Errorf("create verification token: %w", err)
	}
	created := verificationTokenFromProps(propMap(row, "token"))
	if created == nil {
		return store.VerificationToken{}, fmt.Errorf("create verification token: no node returned")
	}
	return *created, nil
}

// UseVerificationToken atomically finds and deletes the token node,
// returning its prior fields.
func (s *Store) UseVerificationToken(ctx context.Context, identifier, token string) (*store.VerificationToken, error) {
	const query = `
		MATCH (v:VerificationToken {identifier: $data.identifier, token: $data.token})
		WITH v, v{.*} AS props
		DETACH DELETE v
		RETURN props AS token`

	row, err := s.run.WriteRecord(ctx, query, map[string]any{
		"identifier": identifier,
		"token":      token,
	})
	if err != nil {
		return nil, fmt.Errorf("use verification token: %w", err)
	}
	return verificationTokenFromProps(propMap(row, "token")), nil
}

// PurgeExpired removes expired Session and VerificationToken nodes.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	const purgeSessions = `
		MATCH (s:Session)
		WHERE datetime(s.expires) < datetime($data.now)
		WITH collect(s) AS expired
		FOREACH (s IN expired | DETACH DELETE s)
		RETURN size(expired) AS purged`
	const purgeTokens = `
		MATCH (v:VerificationToken)
		WHERE datetime(v.expires) < datetime($data.now)
		WITH collect(v) AS expired
		FOREACH (v IN expired | DETACH DELETE v)
		RETURN size(expired) AS purged`

	sessions, err := s.purge(ctx, purgeSessions, now)
	if err != nil {
		return 0, 0, fmt.Errorf("purge sessions: %w", err)
	}
	tokens, err := s.purge(ctx, purgeTokens, now)
	if err != nil {
		return sessions, 0, fmt.Errorf("purge verification tokens: %w", err)
	}
	return sessions, tokens, nil
}

func (s *Store) purge(ctx context.Context, query string, now time.Time) (int64, error) {
	row, err := s.run.WriteRecord(ctx, query, map[string]any{"now": now})
	if err != nil {
		return 0, err
	}
	purged, _ := row["purged"].(int64)
	return purged, nil
}

// constraintAware joins store.ErrConstraint onto constraint-validation
// failures reported by the server, keeping the original error
// inspectable.
func constraintAware(err error) error {
	if err == nil {
		return nil
	}
	var serverErr *neo4j.Neo4jError
	if errors.As(err, &serverErr) && strings.Contains(serverErr.Code, "ConstraintValidationFailed") {
		return errors.Join(store.ErrConstraint, err)
	}
	return err
}
