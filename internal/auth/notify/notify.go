// Package notify delivers verification codes out of band.
package notify

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the channel could not be reached; a later
	// attempt may succeed.
	ErrUnavailable = errors.New("notify: channel unavailable")

	// ErrRejected means the channel refused the message.
	ErrRejected = errors.New("notify: message rejected")
)

// Message is a single notification. To is a phone number for SMS and an
// address for email; Subject is ignored by SMS.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
