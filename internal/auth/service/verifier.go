package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// Verifier checks a nonce and code pair and consumes the nonce on success.
type Verifier struct {
	Nonces *NonceStore
}

// Check returns the identity bound to nonce when code matches. Every
// client-side failure is ErrUnauthorized; the reason only reaches the log.
// Storage failures are returned wrapped.
func (v *Verifier) Check(ctx context.Context, nonce, code string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)

	if nonce == "" || code == "" {
		return domain.Identity{}, ErrUnauthorized
	}

	pending, err := v.Nonces.Get(ctx, nonce)
	if errors.Is(err, errExpired) {
		l.Info("verification rejected", "reason", "expired")
		return domain.Identity{}, ErrUnauthorized
	}
	if errors.Is(err, store.ErrNotFound) {
		l.Info("verification rejected", "reason", "unknown_nonce")
		return domain.Identity{}, ErrUnauthorized
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load verification: %w", err)
	}

	l = l.With("verification_id", pending.ID)

	if !cryptox.MatchFingerprint(code, pending.CodeHash) {
		attempts, err := v.Nonces.RecordAttempt(ctx, nonce)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Consumed or exhausted by a concurrent request.
		case err != nil:
			return domain.Identity{}, fmt.Errorf("record attempt: %w", err)
		case attempts >= v.Nonces.maxAttempts():
			l.Warn("verification exhausted", "attempts", attempts)
		default:
			l.Info("verification rejected", "reason", "code_mismatch", "attempts", attempts)
		}
		return domain.Identity{}, ErrUnauthorized
	}

	if err := v.Nonces.Consume(ctx, nonce); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("verification rejected", "reason", "already_consumed")
			return domain.Identity{}, ErrUnauthorized
		}
		return domain.Identity{}, fmt.Errorf("consume verification: %w", err)
	}

	if err := pending.Identity.Validate(); err != nil {
		l.Warn("verification rejected", "reason", err.Error())
		return domain.Identity{}, ErrUnauthorized
	}

	return pending.Identity, nil
}
