package notify

import (
	"context"
	"errors"
	"fmt"
	"net"

	"gopkg.in/gomail.v2"
)

// EmailSender delivers messages over SMTP.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
}

var _ Sender = (*EmailSender)(nil)

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *EmailSender) message(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

// Send dials and sends in the background so the context deadline bounds
// the call; gomail has no context support of its own.
func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	m := s.message(msg)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: email: %w", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: email: %w", ErrRejected, err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: email: %w", ErrUnavailable, ctx.Err())
	}
}
