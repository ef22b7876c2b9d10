package store

import "time"

// Session is one active login, looked up by its unique opaque token and
// owned by exactly one user.
type Session struct {
	SessionToken string
	UserID       string
	Expires      time.Time
}

// Expired reports whether the session's expiry is before now.
func (s Session) Expired(now time.Time) bool {
	return s.Expires.Before(now)
}

// SessionPatch carries a partial update for UpdateSession. Nil fields
// are left untouched.
type SessionPatch struct {
	UserID  *string
	Expires *time.Time
}

// Apply merges the patch into a copy of s and returns it.
func (p SessionPatch) Apply(s Session) Session {
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.Expires != nil {
		s.Expires = *p.Expires
	}
	return s
}

// IsZero reports whether the patch supplies no fields.
func (p SessionPatch) IsZero() bool {
	return p.UserID == nil && p.Expires == nil
}
