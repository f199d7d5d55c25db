package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
)

// FileAccount is one entry of a YAML directory file.
type FileAccount struct {
	UserID       string             `yaml:"userId"`
	Username     string             `yaml:"username"`
	PasswordHash string             `yaml:"passwordHash"` // argon2id, see authctl hash-password
	Name         []domain.HumanName `yaml:"name"`
	Scope        []string           `yaml:"scope"`
	Status       string             `yaml:"status"`
	Mobile       string             `yaml:"mobile"`
	Email        string             `yaml:"email"`
}

type fileDocument struct {
	Users []FileAccount `yaml:"users"`
}

// FileDirectory serves accounts from a YAML file. It is meant for
// development and tests where no user-management service runs.
// Accounts match on username, mobile or email.
type FileDirectory struct {
	accounts []FileAccount

	// dummyHash is verified against when no account matches so unknown
	// identifiers cost the same as wrong passwords.
	dummyHash string
}

var _ Directory = (*FileDirectory)(nil)

// LoadFile reads and parses a directory file.
func LoadFile(path string) (*FileDirectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read %s: %w", path, err)
	}
	return ParseFile(raw)
}

// ParseFile parses YAML directory content.
func ParseFile(raw []byte) (*FileDirectory, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("directory: parse: %w", err)
	}

	for i, a := range doc.Users {
		if a.UserID == "" {
			return nil, fmt.Errorf("directory: user %d has no userId", i)
		}
		if a.PasswordHash == "" {
			return nil, fmt.Errorf("directory: user %s has no passwordHash", a.UserID)
		}
	}

	dummy, err := cryptox.HashPassword("directory-dummy-password")
	if err != nil {
		return nil, err
	}

	return &FileDirectory{accounts: doc.Users, dummyHash: dummy}, nil
}

func (d *FileDirectory) Verify(ctx context.Context, identifier, password string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}

	account, ok := d.lookup(identifier)
	if !ok {
		_ = cryptox.VerifyPassword(password, d.dummyHash)
		return domain.Identity{}, ErrRejected
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.Identity{}, ErrRejected
		}
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	return domain.Identity{
		SubjectID: account.UserID,
		Name:      account.Name,
		Scope:     account.Scope,
		Status:    account.Status,
		Mobile:    account.Mobile,
		Email:     account.Email,
	}.Clone(), nil
}

func (d *FileDirectory) lookup(identifier string) (FileAccount, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return FileAccount{}, false
	}

	for _, a := range d.accounts {
		if a.Username == identifier || a.Mobile == identifier || strings.EqualFold(a.Email, identifier) {
			return a, true
		}
	}
	return FileAccount{}, false
}
