package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrUnknownKID = errors.New("jwtx: unknown kid")
	ErrKeyType    = errors.New("jwtx: key does not match algorithm")
	ErrAudience   = errors.New("jwtx: audience mismatch")
)

// Verifier validates a JWT and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions captures what a verifier expects of a token.
type VerifyOptions struct {
	// Issuer the token must carry. Empty means any.
	Issuer string

	// Audience values of which at least one must be present. Empty means any.
	Audience []string

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration

	// Now overrides the validation clock.
	Now func() time.Time
}

// KeySetVerifier checks signatures against a KeySet. The algorithm is taken
// from the token header and must agree with the type of the key under kid.
type KeySetVerifier struct {
	keys *KeySet
	opts VerifyOptions
}

// NewVerifier returns a verifier backed by keys.
func NewVerifier(keys *KeySet, opts VerifyOptions) *KeySetVerifier {
	return &KeySetVerifier{keys: keys, opts: opts}
}

func (v *KeySetVerifier) Verify(tokenStr string) (Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.opts.Leeway),
	}
	if v.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.Issuer))
	}
	if v.opts.Now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(v.opts.Now))
	}

	var claims Claims
	_, err := jwt.NewParser(parserOpts...).ParseWithClaims(tokenStr, &claims, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return Claims{}, fmt.Errorf("jwtx: verify: %w", err)
	}

	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (v *KeySetVerifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrUnknownKID)
	}

	pub, err := v.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}

	var ok bool
	switch t.Method.Alg() {
	case AlgorithmRS256:
		_, ok = pub.(*rsa.PublicKey)
	case AlgorithmES256:
		_, ok = pub.(*ecdsa.PublicKey)
	case AlgorithmEdDSA:
		_, ok = pub.(ed25519.PublicKey)
	}
	if !ok {
		return nil, ErrKeyType
	}
	return pub, nil
}
