package store

import "github.com/google/uuid"

// IDGenerator produces opaque identifiers for newly created users.
// Adapters receive one at construction instead of reaching for ambient
// randomness, so callers can substitute deterministic generation in
// tests or plug in their own scheme.
type IDGenerator func() string

// NewID is the default generator, producing random UUID strings.
func NewID() string {
	return uuid.NewString()
}
