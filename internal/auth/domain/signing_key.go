package domain

import "time"

// SigningKey is a JWT signing key persisted in sealed form.
type SigningKey struct {
	ID                  string // ULID
	Kid                 string // Key identifier in JWKS (e.g., "twostep-abc123")
	Algorithm           string // RS256, ES256, or EdDSA
	PrivateKeyEncrypted []byte // AES-256-GCM sealed private key PEM
	CreatedAt           time.Time
	ExpiresAt           time.Time // Removed by housekeeping after this
}

// IsExpired reports whether the key has passed its expiration time.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
