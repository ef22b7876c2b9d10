package neo4j

import (
	"time"

	"authstore/internal/store"
)

// Entities map onto node property bags with camelCase keys. Empty
// string fields are stored as absent properties: the store's unique
// constraints treat missing properties as non-conflicting, which is
// what "unique when present" needs for email.

func userProps(user store.User) map[string]any {
	props := map[string]any{"id": user.ID}
	putString(props, "name", user.Name)
	putString(props, "email", user.Email)
	putString(props, "image", user.Image)
	if user.EmailVerified != nil {
		props["emailVerified"] = *user.EmailVerified
	}
	return props
}

func userFromProps(props map[string]any) *store.User {
	if props == nil {
		return nil
	}
	user := &store.User{
		ID:    propString(props, "id"),
		Name:  propString(props, "name"),
		Email: propString(props, "email"),
		Image: propString(props, "image"),
	}
	if verified, ok := propTime(props, "emailVerified"); ok {
		user.EmailVerified = &verified
	}
	return user
}

func accountProps(account store.Account) map[string]any {
	props := map[string]any{
		"provider":          account.Provider,
		"providerAccountId": account.ProviderAccountID,
		"userId":            account.UserID,
	}
	putString(props, "type", account.Type)
	putString(props, "access_token", account.AccessToken)
	putString(props, "refresh_token", account.RefreshToken)
	putString(props, "token_type", account.TokenType)
	putString(props, "scope", account.Scope)
	putString(props, "id_token", account.IDToken)
	if account.ExpiresAt != nil {
		props["expires_at"] = *account.ExpiresAt
	}
	return props
}

func accountFromProps(props map[string]any) *store.Account {
	if props == nil {
		return nil
	}
	account := &store.Account{
		UserID:            propString(props, "userId"),
		Type:              propString(props, "type"),
		Provider:          propString(props, "provider"),
		ProviderAccountID: propString(props, "providerAccountId"),
		AccessToken:       propString(props, "access_token"),
		RefreshToken:      propString(props, "refresh_token"),
		TokenType:         propString(props, "token_type"),
		Scope:             propString(props, "scope"),
		IDToken:           propString(props, "id_token"),
	}
	if expires, ok := propTime(props, "expires_at"); ok {
		account.ExpiresAt = &expires
	}
	return account
}

func sessionProps(session store.Session) map[string]any {
	return map[string]any{
		"sessionToken": session.SessionToken,
		"userId":       session.UserID,
		"expires":      session.Expires,
	}
}

func sessionFromProps(props map[string]any) *store.Session {
	if props == nil {
		return nil
	}
	session := &store.Session{
		SessionToken: propString(props, "sessionToken"),
		UserID:       propString(props, "userId"),
	}
	if expires, ok := propTime(props, "expires"); ok {
		session.Expires = expires
	}
	return session
}

func verificationTokenProps(token store.VerificationToken) map[string]any {
	return map[string]any{
		"identifier": token.Identifier,
		"token":      token.Token,
		"expires":    token.Expires,
	}
}

func verificationTokenFromProps(props map[string]any) *store.VerificationToken {
	if props == nil {
		return nil
	}
	token := &store.VerificationToken{
		Identifier: propString(props, "identifier"),
		Token:      propString(props, "token"),
	}
	if expires, ok := propTime(props, "expires"); ok {
		token.Expires = expires
	}
	return token
}

func putString(props map[string]any, key, value string) {
	if value != "" {
		props[key] = value
	}
}

func propString(props map[string]any, key string) string {
	value, _ := props[key].(string)
	return value
}

func propTime(props map[string]any, key string) (time.Time, bool) {
	value, ok := props[key].(time.Time)
	return value, ok
}

// propMap pulls a nested row value (a map projection or node) out of a
// decoded record.
func propMap(row map[string]any, key string) map[string]any {
	value, _ := row[key].(map[string]any)
	return value
}
