package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSSender posts messages to an HTTP SMS gateway as
// {"to": ..., "from": ..., "message": ...}.
type SMSSender struct {
	GatewayURL string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

var _ Sender = (*SMSSender)(nil)

func NewSMSSender(gatewayURL, apiKey, from string, timeout time.Duration) *SMSSender {
	return &SMSSender{
		GatewayURL: gatewayURL,
		APIKey:     apiKey,
		From:       from,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type smsPayload struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

func (s *SMSSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(smsPayload{To: msg.To, From: s.From, Message: msg.Body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: sms: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: sms gateway status %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: sms gateway status %d", ErrRejected, resp.StatusCode)
	}
}
