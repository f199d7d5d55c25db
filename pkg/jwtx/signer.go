package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer signs claims with a single private key.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner loads a PEM private key for alg. The key type must match the
// algorithm: RSA for RS256, ECDSA P-256 for ES256, Ed25519 for EdDSA.
func NewSigner(alg, kid string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	var method jwt.SigningMethod
	switch alg {
	case AlgorithmRS256:
		k, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("jwtx: RS256 needs an RSA key, got %T", key)
		}
		if k.N.BitLen() < cryptox.MinRSABits {
			return nil, fmt.Errorf("jwtx: RSA key too small (%d bits)", k.N.BitLen())
		}
		method = jwt.SigningMethodRS256
	case AlgorithmES256:
		k, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("jwtx: ES256 needs an ECDSA key, got %T", key)
		}
		if k.Curve.Params().Name != "P-256" {
			return nil, fmt.Errorf("jwtx: ES256 needs P-256, got %s", k.Curve.Params().Name)
		}
		method = jwt.SigningMethodES256
	case AlgorithmEdDSA:
		if _, ok := key.(ed25519.PrivateKey); !ok {
			return nil, fmt.Errorf("jwtx: EdDSA needs an Ed25519 key, got %T", key)
		}
		method = jwt.SigningMethodEdDSA
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", alg)
	}

	jwk, err := NewJWK(kid, alg, key.Public())
	if err != nil {
		return nil, err
	}

	return &keySigner{kid: kid, method: method, key: key, jwk: jwk}, nil
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// generatePEM creates a fresh private key for alg.
func generatePEM(alg string, rsaBits int) ([]byte, error) {
	switch alg {
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = 4096
		}
		return cryptox.GenerateRSAKey(rsaBits)
	case AlgorithmES256:
		return cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		return cryptox.GenerateEd25519Key()
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
}
