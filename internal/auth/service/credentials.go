package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/directory"
	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// DefaultDirectoryTimeout bounds a directory call when none is configured.
const DefaultDirectoryTimeout = 5 * time.Second

// CredentialValidator checks a primary credential against the user
// directory.
type CredentialValidator struct {
	Directory directory.Directory
	Timeout   time.Duration
}

// Validate returns the identity behind identifier and secret. Every
// rejection is ErrInvalidCredentials, whether the account is unknown, the
// password is wrong or the account is not active. Directory timeouts are
// ErrUpstreamUnavailable.
func (v *CredentialValidator) Validate(ctx context.Context, identifier, secret string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return domain.Identity{}, ErrInvalidCredentials
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultDirectoryTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	identity, err := v.Directory.Verify(callCtx, identifier, secret)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return domain.Identity{}, ctx.Err()
		case errors.Is(err, directory.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
			l.Warn("user directory unavailable", "error", err)
			return domain.Identity{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		case errors.Is(err, directory.ErrRejected):
			l.Info("primary credential rejected", "reason", "directory")
			return domain.Identity{}, ErrInvalidCredentials
		default:
			l.Error("user directory failed", "error", err)
			return domain.Identity{}, ErrInvalidCredentials
		}
	}

	if err := identity.Validate(); err != nil {
		l.Info("primary credential rejected", "reason", err.Error(), "sub", identity.SubjectID)
		return domain.Identity{}, ErrInvalidCredentials
	}

	return identity.Clone(), nil
}
