package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/notify"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

const (
	DefaultCodeDigits    = otp.DigitsSix
	DefaultNotifyTimeout = 10 * time.Second

	// codeSecretSize is the HMAC key length read per code (RFC 4226 minimum
	// is 128 bits, 160 recommended).
	codeSecretSize = 20
)

// CodeGenerator makes verification codes and sends them to the identity's
// phone or mailbox.
type CodeGenerator struct {
	// Random defaults to crypto/rand.
	Random io.Reader

	// Digits is 6 or 8.
	Digits otp.Digits

	// SMS and Email are the channels; either may be nil.
	SMS   notify.Sender
	Email notify.Sender

	Timeout time.Duration

	// TTL is shown to the user in the message.
	TTL time.Duration
}

// Generate returns a numeric code. A fresh random key is drawn for every
// code and truncated the HOTP way, so codes are uniform over the digit
// space up to the usual truncation bias.
func (g *CodeGenerator) Generate() (string, error) {
	r := g.Random
	if r == nil {
		r = rand.Reader
	}

	key := make([]byte, codeSecretSize)
	if _, err := io.ReadFull(r, key); err != nil {
		return "", fmt.Errorf("read code secret: %w", err)
	}

	digits := g.Digits
	if digits != otp.DigitsEight {
		digits = DefaultCodeDigits
	}

	return hotp.GenerateCodeCustom(
		base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(key),
		0,
		hotp.ValidateOpts{Digits: digits, Algorithm: otp.AlgorithmSHA1},
	)
}

type channel struct {
	amr    string
	to     string
	sender notify.Sender
}

// route picks SMS when the identity has a mobile and SMS is configured,
// otherwise email.
func (g *CodeGenerator) route(identity domain.Identity) (channel, error) {
	switch {
	case identity.Mobile != "" && g.SMS != nil:
		return channel{amr: jwtx.AMRSMS, to: identity.Mobile, sender: g.SMS}, nil
	case identity.Email != "" && g.Email != nil:
		return channel{amr: jwtx.AMREmail, to: identity.Email, sender: g.Email}, nil
	default:
		return channel{}, ErrNoContactChannel
	}
}

// Channel returns the amr value of the channel a code for identity goes
// through, or ErrNoContactChannel.
func (g *CodeGenerator) Channel(identity domain.Identity) (string, error) {
	ch, err := g.route(identity)
	return ch.amr, err
}

// Dispatch delivers code to identity. Failures wrap ErrDeliveryFailed;
// timeouts and unreachable channels also wrap ErrUpstreamUnavailable.
func (g *CodeGenerator) Dispatch(ctx context.Context, identity domain.Identity, code string) error {
	ch, err := g.route(identity)
	if err != nil {
		return err
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = ch.sender.Send(ctx, notify.Message{
		To:      ch.to,
		Subject: "Your verification code",
		Body:    g.messageBody(identity, code),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, notify.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w: %w", ErrDeliveryFailed, ErrUpstreamUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
}

func (g *CodeGenerator) messageBody(identity domain.Identity, code string) string {
	minutes := max(int(g.TTL.Round(time.Minute)/time.Minute), 1)

	greeting := "Hello"
	if name := identity.DisplayName(); name != "" {
		greeting += " " + name
	}
	return fmt.Sprintf("%s, your verification code is %s. It expires in %d minute(s).", greeting, code, minutes)
}
