package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/twostep/pkg/cryptox"
)

// KeyManager owns the signing keys of an instance together with the
// KeySet that publishes their public halves and a verifier over it.
// Several signers may be active; each Sign picks one at random.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	algorithm string

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures key generation and token verification.
type KeyManagerOptions struct {
	// Algorithm is one of RS256, ES256, EdDSA.
	Algorithm string

	// Issuer and Audience are enforced by the manager's Verifier.
	Issuer   string
	Audience []string

	// RSABits is the modulus size for generated RS256 keys (default 4096).
	RSABits int

	// NumKeys is how many signing keys to keep active (default 3, max 10).
	NumKeys int

	// KeyIDPrefix prefixes generated kids (default "twostep").
	KeyIDPrefix string
}

func (o *KeyManagerOptions) normalise() {
	if o.NumKeys <= 0 {
		o.NumKeys = 3
	}
	if o.NumKeys > 10 {
		o.NumKeys = 10
	}
	if o.KeyIDPrefix == "" {
		o.KeyIDPrefix = "twostep"
	}
}

// NewKeyManager wires the given signers into a KeyManager. It accepts zero
// signers; such a manager verifies nothing and GetSigner returns nil.
func NewKeyManager(opts KeyManagerOptions, signers ...Signer) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}
	switch opts.Algorithm {
	case AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA:
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", opts.Algorithm)
	}

	keyset := NewKeySet()
	for _, s := range signers {
		if err := keyset.AddSigner(s); err != nil {
			return nil, fmt.Errorf("jwtx: add %s to keyset: %w", s.KID(), err)
		}
	}

	return &KeyManager{
		Verifier: NewVerifier(keyset, VerifyOptions{
			Issuer:   opts.Issuer,
			Audience: opts.Audience,
		}),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

// NewEphemeralKeyManager generates NumKeys fresh keys held only in memory.
// Tokens signed by a previous process can no longer be verified.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	opts.normalise()

	signers := make([]Signer, 0, opts.NumKeys)
	for i := range opts.NumKeys {
		kid, err := newKeyID(opts.KeyIDPrefix)
		if err != nil {
			return nil, err
		}
		pemKey, err := generatePEM(opts.Algorithm, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key %d: %w", i+1, err)
		}
		signer, err := NewSigner(opts.Algorithm, kid, pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: load key %d: %w", i+1, err)
		}
		signers = append(signers, signer)
	}

	return NewKeyManager(opts, signers...)
}

// NewStaticKeyManager loads a single operator-provided key, e.g. one
// mounted from a secret store. An empty kid is derived from the public key.
func NewStaticKeyManager(opts KeyManagerOptions, kid string, pemKey []byte) (*KeyManager, error) {
	opts.normalise()

	if kid == "" {
		key, err := cryptox.ParsePrivateKeyPEM(pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: %w", err)
		}
		jwk, err := NewJWK("", opts.Algorithm, key.Public())
		if err != nil {
			return nil, err
		}
		kid = opts.KeyIDPrefix + "-" + cryptox.FingerprintToken(jwk.N+jwk.X+jwk.Y)[:16]
	}

	signer, err := NewSigner(opts.Algorithm, kid, pemKey)
	if err != nil {
		return nil, err
	}
	return NewKeyManager(opts, signer)
}

// Algorithm returns the signing algorithm.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady reports whether there is at least one active signer.
func (km *KeyManager) IsReady() bool {
	return km.NumSigners() > 0
}

// GetSigner returns a random active signer, or nil when none is loaded.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner makes signer active and publishes its public key.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// newKeyID returns "<prefix>-<128-bit random token>".
func newKeyID(prefix string) (string, error) {
	token, err := cryptox.GenerateToken(nil, cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: generate key ID: %w", err)
	}
	return prefix + "-" + token, nil
}
