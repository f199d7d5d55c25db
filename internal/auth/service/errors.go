package service

import "errors"

var (
	// ErrInvalidCredentials is the only answer to a failed primary check.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrUnauthorized is the only answer to a failed nonce and code check.
	ErrUnauthorized = errors.New("unauthorized")

	ErrSigningKeyUnavailable = errors.New("signing_key_unavailable")
	ErrDeliveryFailed        = errors.New("delivery_failed")
	ErrNoContactChannel      = errors.New("no_contact_channel")

	// ErrUpstreamUnavailable marks failures the client may retry: a
	// directory or notification call that timed out or could not connect.
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
)
