// Package directory adapts user directories that validate a primary
// credential and describe the account behind it.
package directory

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

var (
	// ErrRejected covers every answer that is not a valid identity: unknown
	// account, wrong password, any non-success response.
	ErrRejected = errors.New("directory: credentials rejected")

	// ErrUnavailable means the directory could not be reached in time.
	ErrUnavailable = errors.New("directory: unavailable")
)

// Directory validates identifier and password and returns the account.
type Directory interface {
	Verify(ctx context.Context, identifier, password string) (domain.Identity, error)
}
