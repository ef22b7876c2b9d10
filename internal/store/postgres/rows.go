package postgres

import (
	"time"

	"authstore/internal/store"
)

// userRow is a database row representation of store.User.
type userRow struct {
	ID            string     `db:"id"`
	Name          string     `db:"name"`
	Email         string     `db:"email"`
	EmailVerified *time.Time `db:"email_verified"`
	Image         string     `db:"image"`
}

func (r *userRow) toUser() *store.User {
	return &store.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		Image:         r.Image,
	}
}

// accountRow is a database row representation of store.Account.
type accountRow struct {
	UserID            string     `db:"user_id"`
	Type              string     `db:"type"`
	Provider          string     `db:"provider"`
	ProviderAccountID string     `db:"provider_account_id"`
	AccessToken       string     `db:"access_token"`
	RefreshToken      string     `db:"refresh_token"`
	TokenType         string     `db:"token_type"`
	Scope             string     `db:"scope"`
	IDToken           string     `db:"id_token"`
	ExpiresAt         *time.Time `db:"expires_at"`
}

func (r *accountRow) toAccount() *store.Account {
	return &store.Account{
		UserID:            r.UserID,
		Type:              r.Type,
		Provider:          r.Provider,
		ProviderAccountID: r.ProviderAccountID,
		AccessToken:       r.AccessToken,
		RefreshToken:      r.RefreshToken,
		TokenType:         r.TokenType,
		Scope:             r.Scope,
		IDToken:           r.IDToken,
		ExpiresAt:         r.ExpiresAt,
	}
}

// sessionRow is a database row representation of store.Session.
type sessionRow struct {
	SessionToken string    `db:"session_token"`
	UserID       string    `db:"user_id"`
	Expires      time.Time `db:"expires"`
}

func (r *sessionRow) toSession() *store.Session {
	return &store.Session{
		SessionToken: r.SessionToken,
		UserID:       r.UserID,
		Expires:      r.Expires,
	}
}

// sessionUserRow is a database row for the session + user join query.
type sessionUserRow struct {
	// Session fields
	SessionToken string    `db:"session_token"`
	UserID       string    `db:"user_id"`
	Expires      time.Time `db:"expires"`

	// User fields
	ID            string     `db:"id"`
	Name          string     `db:"name"`
	Email         string     `db:"email"`
	EmailVerified *time.Time `db:"email_verified"`
	Image         string     `db:"image"`
}

func (r *sessionUserRow) toSession() *store.Session {
	return &store.Session{
		SessionToken: r.SessionToken,
		UserID:       r.UserID,
		Expires:      r.Expires,
	}
}

func (r *sessionUserRow) toUser() *store.User {
	return &store.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		Image:         r.Image,
	}
}

// verificationTokenRow is a database row representation of
// store.VerificationToken.
type verificationTokenRow struct {
	Identifier string    `db:"identifier"`
	Token      string    `db:"token"`
	Expires    time.Time `db:"expires"`
}

func (r *verificationTokenRow) toToken() *store.VerificationToken {
	return &store.VerificationToken{
		Identifier: r.Identifier,
		Token:      r.Token,
		Expires:    r.Expires,
	}
}
