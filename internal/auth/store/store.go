package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the memory, sqlite
// and redis drivers. It exposes sub-repositories to keep concerns tidy.
type Store interface {
	Verifications() Verifications
	SigningKeys() SigningKeys

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// Verifications holds pending two-step challenges keyed by nonce
// fingerprint. Every method is atomic for a given key; drivers must never
// let two callers both observe or delete the same record.
type Verifications interface {
	// CreateVerification inserts a new record. ErrAlreadyExists if the
	// nonce hash is taken.
	CreateVerification(ctx context.Context, v domain.PendingVerification) error

	// GetVerification returns the record as stored, expired or not.
	GetVerification(ctx context.Context, nonceHash string) (domain.PendingVerification, error)

	// IncrementVerificationAttempts adds one failed attempt and returns the
	// new count. When the count reaches maxAttempts the record is deleted in the
	// same step.
	IncrementVerificationAttempts(ctx context.Context, nonceHash string, maxAttempts int) (int, error)

	// DeleteVerification removes the record. ErrNotFound if it was already
	// gone, which lets exactly one caller win a consume race.
	DeleteVerification(ctx context.Context, nonceHash string) error

	// DeleteExpiredVerifications removes records with ExpiresAt <= now.
	DeleteExpiredVerifications(ctx context.Context, now time.Time) (int64, error)
}

// SigningKeys persists sealed JWT signing keys for the persistent key mode.
type SigningKeys interface {
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// ListSigningKeys returns keys with ExpiresAt > now, oldest first.
	ListSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// DeleteExpiredSigningKeys removes keys with ExpiresAt <= now.
	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
