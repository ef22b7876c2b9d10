package redis

import (
	"time"

	"authstore/internal/store"
)

// userRecord is the JSON shape persisted for a user.
type userRecord struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Image         string     `json:"image,omitempty"`
}

func newUserRecord(user store.User) userRecord {
	return userRecord{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Image:         user.Image,
	}
}

func (r userRecord) toUser() *store.User {
	return &store.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		Image:         r.Image,
	}
}

// accountRecord is the JSON shape persisted for a linked account.
type accountRecord struct {
	UserID            string     `json:"userId"`
	Type              string     `json:"type,omitempty"`
	Provider          string     `json:"provider"`
	ProviderAccountID string     `json:"providerAccountId"`
	AccessToken       string     `json:"accessToken,omitempty"`
	RefreshToken      string     `json:"refreshToken,omitempty"`
	TokenType         string     `json:"tokenType,omitempty"`
	Scope             string     `json:"scope,omitempty"`
	IDToken           string     `json:"idToken,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
}

func newAccountRecord(account store.Account) accountRecord {
	return accountRecord{
		UserID:            account.UserID,
		Type:              account.Type,
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		AccessToken:       account.AccessToken,
		RefreshToken:      account.RefreshToken,
		TokenType:         account.TokenType,
		Scope:             account.Scope,
		IDToken:           account.IDToken,
		ExpiresAt:         account.ExpiresAt,
	}
}

func (r accountRecord) toAccount() *store.Account {
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

// sessionRecord is the JSON shape persisted for a session.
type sessionRecord struct {
	SessionToken string    `json:"sessionToken"`
	UserID       string    `json:"userId"`
	Expires      time.Time `json:"expires"`
}

func newSessionRecord(session store.Session) sessionRecord {
	return sessionRecord{
		SessionToken: session.SessionToken,
		UserID:       session.UserID,
		Expires:      session.Expires,
	}
}

func (r sessionRecord) toSession() *store.Session {
	return &store.Session{
		SessionToken: r.SessionToken,
		UserID:       r.UserID,
		Expires:      r.Expires,
	}
}

// verificationRecord is the JSON shape persisted for a verification
// token.
type verificationRecord struct {
	Identifier string    `json:"identifier"`
	Token      string    `json:"token"`
	Expires    time.Time `json:"expires"`
}

func newVerificationRecord(token store.VerificationToken) verificationRecord {
	return verificationRecord{
		Identifier: token.Identifier,
		Token:      token.Token,
		Expires:    token.Expires,
	}
}

func (r verificationRecord) toToken() *store.VerificationToken {
	return &store.VerificationToken{
		Identifier: r.Identifier,
		Token:      r.Token,
		Expires:    r.Expires,
	}
}
