package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

var tracer = otel.Tracer("github.com/aussiebroadwan/twostep/internal/auth/service")

// DeliveryPolicy decides what Authenticate does when a code cannot be
// sent.
type DeliveryPolicy string

const (
	// DeliveryFail discards the nonce and fails the request.
	DeliveryFail DeliveryPolicy = "fail"

	// DeliveryIgnore logs the failure and returns the nonce anyway.
	DeliveryIgnore DeliveryPolicy = "ignore"
)

// ParseDeliveryPolicy accepts "fail" and "ignore". Empty means fail.
func ParseDeliveryPolicy(s string) (DeliveryPolicy, error) {
	switch p := DeliveryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DeliveryFail, nil
	case DeliveryFail, DeliveryIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("unknown delivery policy %q", s)
	}
}

// ChallengeService runs the two steps: a primary credential check that
// issues a nonce and sends a code, then a nonce and code check that issues
// a token.
type ChallengeService struct {
	Validator *CredentialValidator
	Nonces    *NonceStore
	Codes     *CodeGenerator
	Verifier  *Verifier
	Tokens    *TokenIssuer
	Policy    DeliveryPolicy
}

// Authenticate checks identifier and password and returns a nonce. The
// code goes to the identity's contact channel.
func (s *ChallengeService) Authenticate(ctx context.Context, identifier, password string) (nonce string, err error) {
	ctx, span := tracer.Start(ctx, "challenge.authenticate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	identity, err := s.Validator.Validate(ctx, identifier, password)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("auth.sub", identity.SubjectID))

	ctx = slogx.With(ctx, "sub", identity.SubjectID)
	l := slogx.FromContext(ctx)

	channel, err := s.Codes.Channel(identity)
	if err != nil {
		l.Error("identity has no contact channel")
		return "", err
	}
	span.SetAttributes(attribute.String("auth.channel", channel))

	challenge, err := s.Nonces.Create(ctx, identity)
	if err != nil {
		return "", err
	}
	l = l.With("verification_id", challenge.ID)

	if err := s.Codes.Dispatch(ctx, identity, challenge.Code); err != nil {
		if s.Policy == DeliveryIgnore {
			l.Warn("code delivery failed, continuing", "channel", channel, "error", err)
			return challenge.Nonce, nil
		}
		l.Error("code delivery failed", "channel", channel, "error", err)
		if cerr := s.Nonces.Consume(context.WithoutCancel(ctx), challenge.Nonce); cerr != nil {
			l.Warn("discard undelivered verification", "error", cerr)
		}
		return "", err
	}

	l.Info("verification code sent", "channel", channel, "expires_at", challenge.ExpiresAt)
	return challenge.Nonce, nil
}

// VerifyCode consumes nonce when code matches and returns a signed token.
func (s *ChallengeService) VerifyCode(ctx context.Context, nonce, code string) (token string, err error) {
	ctx, span := tracer.Start(ctx, "challenge.verify_code")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	identity, err := s.Verifier.Check(ctx, nonce, code)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("auth.sub", identity.SubjectID))

	amr := []string{jwtx.AMRPassword, jwtx.AMROTP}
	if channel, err := s.Codes.Channel(identity); err == nil {
		amr = append(amr, channel)
	}

	token, err = s.Tokens.Mint(ctx, identity, amr...)
	if err != nil {
		if !errors.Is(err, ErrSigningKeyUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSigningKeyUnavailable, err)
		}
		slogx.FromContext(ctx).Error("mint access token", "sub", identity.SubjectID, "error", err)
		return "", err
	}

	slogx.FromContext(ctx).Info("verification succeeded", "sub", identity.SubjectID)
	return token, nil
}
