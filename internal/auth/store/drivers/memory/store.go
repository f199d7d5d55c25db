// Package memory is an in-process store. State is lost on restart and is
// not shared between replicas.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
)

type Store struct {
	mu            sync.Mutex
	verifications map[string]domain.PendingVerification
	signingKeys   map[string]domain.SigningKey
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		verifications: make(map[string]domain.PendingVerification),
		signingKeys:   make(map[string]domain.SigningKey),
	}
}

func (s *Store) Verifications() store.Verifications { return (*verificationsRepo)(s) }
func (s *Store) SigningKeys() store.SigningKeys     { return (*signingKeysRepo)(s) }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

type verificationsRepo Store

func (r *verificationsRepo) CreateVerification(_ context.Context, v domain.PendingVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.verifications[v.NonceHash]; ok {
		return store.ErrAlreadyExists
	}
	v.Identity = v.Identity.Clone()
	r.verifications[v.NonceHash] = v
	return nil
}

func (r *verificationsRepo) GetVerification(_ context.Context, nonceHash string) (domain.PendingVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.verifications[nonceHash]
	if !ok {
		return domain.PendingVerification{}, store.ErrNotFound
	}
	v.Identity = v.Identity.Clone()
	return v, nil
}

func (r *verificationsRepo) IncrementVerificationAttempts(_ context.Context, nonceHash string, maxAttempts int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.verifications[nonceHash]
	if !ok {
		return 0, store.ErrNotFound
	}
	v.Attempts++
	if v.Attempts >= maxAttempts {
		delete(r.verifications, nonceHash)
	} else {
		r.verifications[nonceHash] = v
	}
	return v.Attempts, nil
}

func (r *verificationsRepo) DeleteVerification(_ context.Context, nonceHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.verifications[nonceHash]; !ok {
		return store.ErrNotFound
	}
	delete(r.verifications, nonceHash)
	return nil
}

func (r *verificationsRepo) DeleteExpiredVerifications(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, v := range r.verifications {
		if v.IsExpired(now) {
			delete(r.verifications, k)
			n++
		}
	}
	return n, nil
}

type signingKeysRepo Store

func (r *signingKeysRepo) CreateSigningKey(_ context.Context, key domain.SigningKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.signingKeys[key.Kid]; ok {
		return store.ErrAlreadyExists
	}
	key.PrivateKeyEncrypted = slices.Clone(key.PrivateKeyEncrypted)
	r.signingKeys[key.Kid] = key
	return nil
}

func (r *signingKeysRepo) ListSigningKeys(_ context.Context, now time.Time) ([]domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SigningKey, 0, len(r.signingKeys))
	for _, k := range r.signingKeys {
		if !k.IsExpired(now) {
			k.PrivateKeyEncrypted = slices.Clone(k.PrivateKeyEncrypted)
			out = append(out, k)
		}
	}
	slices.SortFunc(out, func(a, b domain.SigningKey) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for kid, k := range r.signingKeys {
		if k.IsExpired(now) {
			delete(r.signingKeys, kid)
			n++
		}
	}
	return n, nil
}
