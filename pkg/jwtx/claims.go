package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL is the lifetime of an access token when none is configured.
const DefaultAccessTokenTTL = 15 * time.Minute

// Authentication method references carried in the "amr" claim.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
	AMRSMS      = "sms"
	AMREmail    = "email"
)

// Claims are the access-token claims. Scope is always encoded as a JSON
// array, in the order the identity's directory returned it.
type Claims struct {
	jwt.RegisteredClaims

	Scope []string `json:"scope"`

	// AMR records how the subject authenticated, e.g. ["pwd","otp"].
	AMR []string `json:"amr,omitempty"`
}

// NewAccessClaims builds claims for subject valid from now for ttl.
// The scope slice is copied so later changes by the caller do not leak
// into a token being signed.
func NewAccessClaims(
	subject string,
	scope, amr []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Scope: slices.Clone(scope),
		AMR:   slices.Clone(amr),
	}
}

// NewJTI returns a random UUIDv4 for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// HasScope reports whether the claims grant scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scope, scope)
}

// ValidateAudience checks that at least one expected audience is present.
// An empty expectation always passes.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}
