package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/pkg/clock"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// TokenIssuer mints access tokens for verified identities.
type TokenIssuer struct {
	KeyManager *jwtx.KeyManager
	Issuer     string
	Audience   []string
	TTL        time.Duration
	Clock      clock.Clock
}

// Mint signs a token carrying the identity's subject and scope.
func (s *TokenIssuer) Mint(ctx context.Context, identity domain.Identity, amr ...string) (string, error) {
	if s.KeyManager == nil {
		return "", ErrSigningKeyUnavailable
	}
	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return "", ErrSigningKeyUnavailable
	}

	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}

	claims := jwtx.NewAccessClaims(identity.SubjectID, identity.Scope, amr, ttl, s.Issuer, s.Audience, now)
	token, err := signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningKeyUnavailable, err)
	}

	slogx.FromContext(ctx).Debug("access token minted",
		"sub", identity.SubjectID,
		"kid", signer.KID(),
		"jti", claims.ID,
	)
	return token, nil
}
