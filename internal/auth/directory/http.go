package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// DefaultVerifyPath is where a user-management service accepts credential
// checks.
const DefaultVerifyPath = "/verifyUser"

// maxResponseBytes bounds how much of a directory reply is read.
const maxResponseBytes = 64 << 10

// HTTPDirectory calls a user-management service over HTTP.
//
// The request is POST {identifier, password}. A 200 reply carries the
// account as {userId, name, scope, status, mobile, email}; anything else
// is a rejection.
type HTTPDirectory struct {
	BaseURL    string
	Path       string
	HTTPClient *http.Client

	// APIKey is sent as a bearer token when set.
	APIKey string
}

var _ Directory = (*HTTPDirectory)(nil)

// NewHTTPDirectory creates a client with the given timeout.
func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Path:       DefaultVerifyPath,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// verifyResponse is the user-management account shape. Contact fields and
// name are optional.
type verifyResponse struct {
	UserID string             `json:"userId"`
	Name   []domain.HumanName `json:"name"`
	Scope  []string           `json:"scope"`
	Status string             `json:"status"`
	Mobile string             `json:"mobile"`
	Email  string             `json:"email"`
}

func (d *HTTPDirectory) Verify(ctx context.Context, identifier, password string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)

	body, err := json.Marshal(verifyRequest{Identifier: identifier, Password: password})
	if err != nil {
		return domain.Identity{}, err
	}

	path := d.Path
	if path == "" {
		path = DefaultVerifyPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return domain.Identity{}, ctx.Err()
		}
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		l.Debug("directory rejected credentials", "status", resp.StatusCode)
		return domain.Identity{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var out *verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return domain.Identity{}, fmt.Errorf("%w: decode response: %w", ErrRejected, err)
	}
	if out == nil || out.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: no identity in response", ErrRejected)
	}

	return domain.Identity{
		SubjectID: out.UserID,
		Name:      out.Name,
		Scope:     out.Scope,
		Status:    out.Status,
		Mobile:    out.Mobile,
		Email:     out.Email,
	}, nil
}
