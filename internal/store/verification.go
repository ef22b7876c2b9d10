package store

import "time"

// VerificationToken is a single-use proof token for passwordless and
// email-verification flows, keyed by the (Identifier, Token) pair.
type VerificationToken struct {
	Identifier string
	Token      string
	Expires    time.Time
}
