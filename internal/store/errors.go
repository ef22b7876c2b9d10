package store

import "errors"

// ErrConstraint marks a unique-key violation: a duplicate email,
// session token, (provider, providerAccountID) pair, or
// (identifier, token) pair. Backends without native constraint
// machinery return it directly; backends with a real constraint engine
// join it onto the driver's own error so the original remains
// inspectable.
var ErrConstraint = errors.New("unique constraint violation")

// IsConstraint reports whether err is a unique-key violation raised by
// any backend.
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint)
}
