// Package redis stores pending verifications in Redis so several replicas
// can share them. Each record is a hash that expires on its own; a sorted
// set indexed by expiry lets the reaper work with an injected clock.
//
// The Lua scripts touch keys derived from index members, so all keys of a
// prefix must live on one node.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
)

// DefaultPrefix namespaces all keys.
const DefaultPrefix = "twostep"

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an existing client. An empty prefix uses DefaultPrefix.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Open parses a redis:// URL and returns a Store that owns the client.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	s := NewStore(redis.NewClient(opts), prefix)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Verifications() store.Verifications { return &verificationsRepo{s: s} }
func (s *Store) SigningKeys() store.SigningKeys     { return &signingKeysRepo{s: s} }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) verificationPrefix() string { return s.prefix + ":pv:" }
func (s *Store) verificationKey(nonceHash string) string {
	return s.verificationPrefix() + nonceHash
}
func (s *Store) verificationIndex() string { return s.prefix + ":pv-expiry" }

func (s *Store) signingKeyPrefix() string        { return s.prefix + ":sk:" }
func (s *Store) signingKeyKey(kid string) string { return s.signingKeyPrefix() + kid }
func (s *Store) signingKeyIndex() string         { return s.prefix + ":sk-expiry" }

type verificationsRepo struct {
	s *Store
}

func (r *verificationsRepo) CreateVerification(ctx context.Context, v domain.PendingVerification) error {
	identity, err := json.Marshal(v.Identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	created, err := createVerificationLua.Run(ctx, r.s.rdb,
		[]string{r.s.verificationKey(v.NonceHash), r.s.verificationIndex()},
		v.ID, v.CodeHash, string(identity),
		v.CreatedAt.UnixMilli(), v.ExpiresAt.UnixMilli(), v.NonceHash,
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *verificationsRepo) GetVerification(ctx context.Context, nonceHash string) (domain.PendingVerification, error) {
	fields, err := r.s.rdb.HGetAll(ctx, r.s.verificationKey(nonceHash)).Result()
	if err != nil {
		return domain.PendingVerification{}, err
	}
	if len(fields) == 0 {
		return domain.PendingVerification{}, store.ErrNotFound
	}

	v := domain.PendingVerification{
		ID:        fields["id"],
		NonceHash: nonceHash,
		CodeHash:  fields["code_hash"],
	}
	if err := json.Unmarshal([]byte(fields["identity"]), &v.Identity); err != nil {
		return domain.PendingVerification{}, fmt.Errorf("decode identity: %w", err)
	}
	if v.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return domain.PendingVerification{}, fmt.Errorf("decode attempts: %w", err)
	}
	if v.CreatedAt, err = parseMillis(fields["created_at"]); err != nil {
		return domain.PendingVerification{}, err
	}
	if v.ExpiresAt, err = parseMillis(fields["expires_at"]); err != nil {
		return domain.PendingVerification{}, err
	}
	return v, nil
}

func (r *verificationsRepo) IncrementVerificationAttempts(ctx context.Context, nonceHash string, maxAttempts int) (int, error) {
	n, err := incrementAttemptsLua.Run(ctx, r.s.rdb,
		[]string{r.s.verificationKey(nonceHash), r.s.verificationIndex()},
		maxAttempts, nonceHash,
	).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (r *verificationsRepo) DeleteVerification(ctx context.Context, nonceHash string) error {
	n, err := deleteVerificationLua.Run(ctx, r.s.rdb,
		[]string{r.s.verificationKey(nonceHash), r.s.verificationIndex()},
		nonceHash,
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *verificationsRepo) DeleteExpiredVerifications(ctx context.Context, now time.Time) (int64, error) {
	return reapLua.Run(ctx, r.s.rdb,
		[]string{r.s.verificationIndex()},
		now.UnixMilli(), r.s.verificationPrefix(),
	).Int64()
}

type signingKeysRepo struct {
	s *Store
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	created, err := createSigningKeyLua.Run(ctx, r.s.rdb,
		[]string{r.s.signingKeyKey(key.Kid), r.s.signingKeyIndex()},
		key.ID, key.Algorithm, key.PrivateKeyEncrypted,
		key.CreatedAt.UnixMilli(), key.ExpiresAt.UnixMilli(), key.Kid,
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	kids, err := r.s.rdb.ZRangeByScore(ctx, r.s.signingKeyIndex(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]domain.SigningKey, 0, len(kids))
	for _, kid := range kids {
		fields, err := r.s.rdb.HGetAll(ctx, r.s.signingKeyKey(kid)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue // expired by redis before the index was reaped
		}

		k := domain.SigningKey{
			ID:                  fields["id"],
			Kid:                 kid,
			Algorithm:           fields["algorithm"],
			PrivateKeyEncrypted: []byte(fields["private_key_encrypted"]),
		}
		if k.CreatedAt, err = parseMillis(fields["created_at"]); err != nil {
			return nil, err
		}
		if k.ExpiresAt, err = parseMillis(fields["expires_at"]); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b domain.SigningKey) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return keys, nil
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	return reapLua.Run(ctx, r.s.rdb,
		[]string{r.s.signingKeyIndex()},
		now.UnixMilli(), r.s.signingKeyPrefix(),
	).Int64()
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
