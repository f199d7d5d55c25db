package jwtx

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/idx"
)

// SigningKeyRecord is a signing key as persisted by a KeyStore.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// KeyStore persists sealed signing keys.
type KeyStore interface {
	// ListSigningKeys returns keys that have not yet expired at now.
	ListSigningKeys(ctx context.Context, now time.Time) ([]SigningKeyRecord, error)

	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures a database-backed KeyManager.
type PersistentKeyManagerOptions struct {
	KeyManagerOptions

	Store  KeyStore
	Sealer *cryptox.KeySealer

	// Lifetime is how long a generated key stays active (default 30 days).
	Lifetime time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewPersistentKeyManager loads unexpired keys from the store and tops the
// set up to NumKeys with freshly generated, sealed keys. Tokens survive a
// restart as long as their key has not expired.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if opts.Sealer == nil {
		return nil, fmt.Errorf("jwtx: Sealer is required for persistent key manager")
	}
	opts.normalise()
	if opts.Lifetime <= 0 {
		opts.Lifetime = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	now := opts.Now().UTC()

	records, err := opts.Store.ListSigningKeys(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load signing keys: %w", err)
	}

	signers := make([]Signer, 0, max(len(records), opts.NumKeys))
	for _, rec := range records {
		pemKey, err := opts.Sealer.Open(rec.PrivateKeyEncrypted)
		if err != nil {
			return nil, fmt.Errorf("jwtx: unseal key %s: %w", rec.Kid, err)
		}
		signer, err := NewSigner(rec.Algorithm, rec.Kid, pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: load key %s: %w", rec.Kid, err)
		}
		signers = append(signers, signer)
	}

	for len(signers) < opts.NumKeys {
		kid, err := newKeyID(opts.KeyIDPrefix)
		if err != nil {
			return nil, err
		}
		pemKey, err := generatePEM(opts.Algorithm, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key: %w", err)
		}
		signer, err := NewSigner(opts.Algorithm, kid, pemKey)
		if err != nil {
			return nil, err
		}
		sealed, err := opts.Sealer.Seal(pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: seal key: %w", err)
		}

		err = opts.Store.CreateSigningKey(ctx, SigningKeyRecord{
			ID:                  idx.New().String(),
			Kid:                 kid,
			Algorithm:           opts.Algorithm,
			PrivateKeyEncrypted: sealed,
			CreatedAt:           now,
			ExpiresAt:           now.Add(opts.Lifetime),
		})
		if err != nil {
			return nil, fmt.Errorf("jwtx: store key: %w", err)
		}
		signers = append(signers, signer)
	}

	return NewKeyManager(opts.KeyManagerOptions, signers...)
}
