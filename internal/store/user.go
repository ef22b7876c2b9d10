package store

import "time"

// User is the canonical representation of an authenticated identity.
// The ID is an opaque string assigned by the adapter's identifier
// generator, never by the backing store.
type User struct {
	ID            string
	Name          string
	Email         string
	EmailVerified *time.Time
	Image         string
}

// UserPatch carries a partial update. Nil fields are left untouched by
// UpdateUser; non-nil fields overwrite the stored values.
type UserPatch struct {
	Name          *string
	Email         *string
	EmailVerified *time.Time
	Image         *string
}

// Apply merges the patch into a copy of u and returns it.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.EmailVerified != nil {
		t := *p.EmailVerified
		u.EmailVerified = &t
	}
	if p.Image != nil {
		u.Image = *p.Image
	}
	return u
}

// IsZero reports whether the patch supplies no fields.
func (p UserPatch) IsZero() bool {
	return p.Name == nil && p.Email == nil && p.EmailVerified == nil && p.Image == nil
}
