// Package storetest is a conformance suite run against every store driver.
package storetest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/idx"
)

// Base is the reference time used by the suite. Records are created
// relative to it so drivers that also honour wall-clock TTLs keep them.
var Base = time.Now().UTC().Truncate(time.Millisecond).Add(time.Hour)

// Verification builds a pending verification expiring ttl after Base.
func Verification(nonceHash string, ttl time.Duration) domain.PendingVerification {
	return domain.PendingVerification{
		ID:        idx.New().String(),
		NonceHash: nonceHash,
		CodeHash:  "code-" + nonceHash,
		Identity: domain.Identity{
			SubjectID: "1",
			Name:      []domain.HumanName{{Use: "en", Family: "Anik", Given: []string{"Sadman"}}},
			Scope:     []string{"admin", "reader"},
			Status:    domain.StatusActive,
			Mobile:    "+345345343",
			Email:     "test@test.org",
		},
		CreatedAt: Base,
		ExpiresAt: Base.Add(ttl),
	}
}

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		v := Verification("n1", 5*time.Minute)

		require.NoError(t, s.Verifications().CreateVerification(ctx, v))

		got, err := s.Verifications().GetVerification(ctx, "n1")
		require.NoError(t, err)
		require.Equal(t, v.ID, got.ID)
		require.Equal(t, v.CodeHash, got.CodeHash)
		require.Equal(t, v.Identity, got.Identity)
		require.Equal(t, 0, got.Attempts)
		require.True(t, v.CreatedAt.Equal(got.CreatedAt))
		require.True(t, v.ExpiresAt.Equal(got.ExpiresAt))

		err = s.Verifications().CreateVerification(ctx, v)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("get unknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Verifications().GetVerification(t.Context(), "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("attempts delete at max", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Verifications().CreateVerification(ctx, Verification("n1", time.Minute)))

		for want := 1; want < 3; want++ {
			n, err := s.Verifications().IncrementVerificationAttempts(ctx, "n1", 3)
			require.NoError(t, err)
			require.Equal(t, want, n)
		}

		got, err := s.Verifications().GetVerification(ctx, "n1")
		require.NoError(t, err)
		require.Equal(t, 2, got.Attempts)

		n, err := s.Verifications().IncrementVerificationAttempts(ctx, "n1", 3)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		_, err = s.Verifications().GetVerification(ctx, "n1")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Verifications().IncrementVerificationAttempts(ctx, "n1", 3)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete is single use", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Verifications().CreateVerification(ctx, Verification("n1", time.Minute)))

		require.NoError(t, s.Verifications().DeleteVerification(ctx, "n1"))
		require.ErrorIs(t, s.Verifications().DeleteVerification(ctx, "n1"), store.ErrNotFound)
	})

	t.Run("concurrent delete has one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Verifications().CreateVerification(ctx, Verification("n1", time.Minute)))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.Verifications().DeleteVerification(ctx, "n1") == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})

	t.Run("concurrent attempts are counted once each", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Verifications().CreateVerification(ctx, Verification("n1", time.Minute)))

		const maxAttempts = 5
		var mu sync.Mutex
		seen := map[int]int{}
		var wg sync.WaitGroup
		for range 12 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := s.Verifications().IncrementVerificationAttempts(ctx, "n1", maxAttempts)
				if err != nil {
					return
				}
				mu.Lock()
				seen[n]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		// Each count from 1 to max is observed exactly once.
		require.Len(t, seen, maxAttempts)
		for i := 1; i <= maxAttempts; i++ {
			require.Equal(t, 1, seen[i], "count %d", i)
		}
		_, err := s.Verifications().GetVerification(ctx, "n1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Verifications().CreateVerification(ctx, Verification("old", time.Minute)))
		require.NoError(t, s.Verifications().CreateVerification(ctx, Verification("new", time.Hour)))

		n, err := s.Verifications().DeleteExpiredVerifications(ctx, Base.Add(2*time.Minute))
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		_, err = s.Verifications().GetVerification(ctx, "old")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Verifications().GetVerification(ctx, "new")
		require.NoError(t, err)
	})

	t.Run("signing keys", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		k1 := domain.SigningKey{
			ID: idx.New().String(), Kid: "k1", Algorithm: "ES256",
			PrivateKeyEncrypted: []byte("sealed-1"),
			CreatedAt:           Base, ExpiresAt: Base.Add(time.Hour),
		}
		k2 := domain.SigningKey{
			ID: idx.New().String(), Kid: "k2", Algorithm: "EdDSA",
			PrivateKeyEncrypted: []byte("sealed-2"),
			CreatedAt:           Base.Add(time.Second), ExpiresAt: Base.Add(48 * time.Hour),
		}
		require.NoError(t, s.SigningKeys().CreateSigningKey(ctx, k1))
		require.NoError(t, s.SigningKeys().CreateSigningKey(ctx, k2))
		require.ErrorIs(t, s.SigningKeys().CreateSigningKey(ctx, k1), store.ErrAlreadyExists)

		keys, err := s.SigningKeys().ListSigningKeys(ctx, Base)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		require.Equal(t, "k1", keys[0].Kid)
		require.Equal(t, []byte("sealed-1"), keys[0].PrivateKeyEncrypted)
		require.Equal(t, "EdDSA", keys[1].Algorithm)

		keys, err = s.SigningKeys().ListSigningKeys(ctx, Base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, keys, 1)
		require.Equal(t, "k2", keys[0].Kid)

		n, err := s.SigningKeys().DeleteExpiredSigningKeys(ctx, Base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(t.Context()))
	})
}
