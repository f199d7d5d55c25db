package domain

import "time"

// PendingVerification is the state between the two login steps. Only
// fingerprints of the nonce and code are kept.
type PendingVerification struct {
	ID        string // ULID, safe to log
	NonceHash string // Primary key
	CodeHash  string
	Identity  Identity
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the verification window has closed.
func (v *PendingVerification) IsExpired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
