package store

import (
	"time"

	"golang.org/x/oauth2"
)

// Account is one linked external-identity credential. The pair
// (Provider, ProviderAccountID) is globally unique and the account is
// owned by exactly one user.
type Account struct {
	UserID            string
	Type              string
	Provider          string
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	TokenType         string
	Scope             string
	IDToken           string
	ExpiresAt         *time.Time
}

// NewAccount builds an Account from the oauth2 token the framework
// holds after the provider handshake. The handshake itself is outside
// this package; only the resulting token metadata is persisted.
func NewAccount(userID, provider, providerAccountID string, tok *oauth2.Token) Account {
	account := Account{
		UserID:            userID,
		Type:              "oauth",
		Provider:          provider,
		ProviderAccountID: providerAccountID,
	}
	if tok == nil {
		return account
	}

	account.AccessToken = tok.AccessToken
	account.RefreshToken = tok.RefreshToken
	account.TokenType = tok.TokenType
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		account.ExpiresAt = &expiry
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		account.IDToken = idToken
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		account.Scope = scope
	}
	return account
}
