package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authstore/internal/store"
)

func newMockStore(t *testing.T, opts ...Option) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), opts...), mock
}

func TestCreateUserAssignsGeneratedID(t *testing.T) {
	s, mock := newMockStore(t, WithIDGenerator(func() string { return "gen-1" }))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("gen-1", "Ada", "ada@example.com", nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := s.CreateUser(context.Background(), store.User{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "gen-1", created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_unique"})

	_, err := s.CreateUser(context.Background(), store.User{
		ID:    "user-1",
		Email: "dup@example.com",
	})
	require.Error(t, err)
	assert.True(t, store.IsConstraint(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserMissingReturnsNil(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name, email, email_verified, image FROM users WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "email_verified", "image"}))

	user, err := s.GetUser(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, user)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserScansRow(t *testing.T) {
	s, mock := newMockStore(t)

	verified := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, name, email, email_verified, image FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "name", "email", "email_verified", "image"}).
				AddRow("user-1", "Ada", "ada@example.com", verified, ""),
		)

	user, err := s.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ada", user.Name)
	require.NotNil(t, user.EmailVerified)
	assert.True(t, user.EmailVerified.Equal(verified))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserBuildsPartialSetList(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE users SET name = \$2 WHERE id = \$1 RETURNING`).
		WithArgs("user-1", "Grace").
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "name", "email", "email_verified", "image"}).
				AddRow("user-1", "Grace", "ada@example.com", nil, ""),
		)

	name := "Grace"
	updated, err := s.UpdateUser(context.Background(), "user-1", store.UserPatch{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Grace", updated.Name)
	assert.Equal(t, "ada@example.com", updated.Email, "unpatched fields come back unchanged")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserEmptyPatchReads(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name, email, email_verified, image FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "name", "email", "email_verified", "image"}).
				AddRow("user-1", "Ada", "ada@example.com", nil, ""),
		)

	updated, err := s.UpdateUser(context.Background(), "user-1", store.UserPatch{})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Ada", updated.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkAccountConflictYieldsNoRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	err := s.LinkAccount(context.Background(), store.Account{
		UserID:            "user-2",
		Type:              "oauth",
		Provider:          "github",
		ProviderAccountID: "gh-1",
	})
	require.Error(t, err)
	assert.True(t, store.IsConstraint(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkAccountUpsertsForSameUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs("user-1", "oauth", "github", "gh-1", "at", "rt", "bearer", "repo", "idt", nil).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))

	err := s.LinkAccount(context.Background(), store.Account{
		UserID:            "user-1",
		Type:              "oauth",
		Provider:          "github",
		ProviderAccountID: "gh-1",
		AccessToken:       "at",
		RefreshToken:      "rt",
		TokenType:         "bearer",
		Scope:             "repo",
		IDToken:           "idt",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSessionDuplicateToken(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "sessions_pkey"})

	_, err := s.CreateSession(context.Background(), store.Session{
		SessionToken: "dup-tok",
		UserID:       "user-1",
		Expires:      time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, store.IsConstraint(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionAndUserPurgesThenJoins(t *testing.T) {
	s, mock := newMockStore(t)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM sessions WHERE session_token = \$1 AND expires < \$2`).
		WithArgs("tok-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT\s+s.session_token, s.user_id, s.expires`).
		WithArgs("tok-1").
		WillReturnRows(
			sqlmock.NewRows([]string{
				"session_token", "user_id", "expires",
				"id", "name", "email", "email_verified", "image",
			}).AddRow("tok-1", "user-1", expires, "user-1", "Ada", "ada@example.com", nil, ""),
		)
	mock.ExpectCommit()

	session, user, err := s.GetSessionAndUser(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "user-1", user.ID)
	assert.True(t, session.Expires.Equal(expires))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionAndUserPurgedSessionReturnsNil(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM sessions WHERE session_token = \$1 AND expires < \$2`).
		WithArgs("tok-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT\s+s.session_token, s.user_id, s.expires`).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"session_token", "user_id", "expires",
			"id", "name", "email", "email_verified", "image",
		}))
	mock.ExpectCommit()

	session, user, err := s.GetSessionAndUser(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Nil(t, user)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUseVerificationTokenConsumes(t *testing.T) {
	s, mock := newMockStore(t)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	mock.ExpectQuery(`DELETE FROM verification_tokens`).
		WithArgs("ada@example.com", "t-1").
		WillReturnRows(
			sqlmock.NewRows([]string{"identifier", "token", "expires"}).
				AddRow("ada@example.com", "t-1", expires),
		)

	used, err := s.UseVerificationToken(context.Background(), "ada@example.com", "t-1")
	require.NoError(t, err)
	require.NotNil(t, used)
	assert.Equal(t, "t-1", used.Token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUseVerificationTokenMissingReturnsNil(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`DELETE FROM verification_tokens`).
		WithArgs("ada@example.com", "gone").
		WillReturnRows(sqlmock.NewRows([]string{"identifier", "token", "expires"}))

	used, err := s.UseVerificationToken(context.Background(), "ada@example.com", "gone")
	require.NoError(t, err)
	assert.Nil(t, used)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeExpiredCountsBothKinds(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE expires < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM verification_tokens WHERE expires < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	sessions, tokens, err := s.PurgeExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sessions)
	assert.Equal(t, int64(2), tokens)
	require.NoError(t, mock.ExpectationsWereMet())
}
