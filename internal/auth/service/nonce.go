package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/clock"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/idx"
)

const (
	DefaultCodeTTL     = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// errExpired is returned by Get for a record past its window. It is a
// store.ErrNotFound to callers; the text only helps logs.
var errExpired = fmt.Errorf("%w: expired", store.ErrNotFound)

// Challenge is a freshly created pending verification. Nonce goes back to
// the client, Code only to the notification channel.
type Challenge struct {
	ID        string
	Nonce     string
	Code      string
	ExpiresAt time.Time
}

// NonceStore owns pending verifications. Records are keyed by a
// fingerprint of the nonce and hold a fingerprint of the code.
type NonceStore struct {
	Store store.Store
	Codes *CodeGenerator

	// Clock defaults to the wall clock, Random to crypto/rand.
	Clock  clock.Clock
	Random io.Reader

	TTL         time.Duration
	MaxAttempts int
}

func (s *NonceStore) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *NonceStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultCodeTTL
	}
	return s.TTL
}

func (s *NonceStore) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

// Create stores a new pending verification for identity.
func (s *NonceStore) Create(ctx context.Context, identity domain.Identity) (Challenge, error) {
	random := s.Random
	if random == nil {
		random = rand.Reader
	}

	nonce, err := cryptox.GenerateToken(random, cryptox.TokenSize256)
	if err != nil {
		return Challenge{}, err
	}
	code, err := s.Codes.Generate()
	if err != nil {
		return Challenge{}, err
	}

	now := s.now()
	v := domain.PendingVerification{
		ID:        idx.NewAt(now).String(),
		NonceHash: cryptox.FingerprintToken(nonce),
		CodeHash:  cryptox.FingerprintToken(code),
		Identity:  identity.Clone(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl()),
	}
	if err := s.Store.Verifications().CreateVerification(ctx, v); err != nil {
		return Challenge{}, fmt.Errorf("store verification: %w", err)
	}

	return Challenge{ID: v.ID, Nonce: nonce, Code: code, ExpiresAt: v.ExpiresAt}, nil
}

// Get returns the pending verification for nonce. Unknown, consumed and
// expired nonces are all store.ErrNotFound; expired records are deleted on
// the way out.
func (s *NonceStore) Get(ctx context.Context, nonce string) (domain.PendingVerification, error) {
	key := cryptox.FingerprintToken(nonce)

	v, err := s.Store.Verifications().GetVerification(ctx, key)
	if err != nil {
		return domain.PendingVerification{}, err
	}
	if v.IsExpired(s.now()) {
		if err := s.Store.Verifications().DeleteVerification(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.PendingVerification{}, err
		}
		return domain.PendingVerification{}, errExpired
	}
	return v, nil
}

// RecordAttempt counts a failed attempt against nonce and returns the new
// total. At MaxAttempts the record is gone.
func (s *NonceStore) RecordAttempt(ctx context.Context, nonce string) (int, error) {
	return s.Store.Verifications().IncrementVerificationAttempts(ctx, cryptox.FingerprintToken(nonce), s.maxAttempts())
}

// Consume deletes the record for nonce. Only one caller ever succeeds; the
// rest get store.ErrNotFound.
func (s *NonceStore) Consume(ctx context.Context, nonce string) error {
	return s.Store.Verifications().DeleteVerification(ctx, cryptox.FingerprintToken(nonce))
}

// Reap deletes every expired record.
func (s *NonceStore) Reap(ctx context.Context) (int64, error) {
	return s.Store.Verifications().DeleteExpiredVerifications(ctx, s.now())
}
