package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. The
// body, and so the code, ends up in the log: development only.
type LogSender struct {
	Logger  *slog.Logger
	Channel string
}

var _ Sender = (*LogSender)(nil)

func (s *LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("notification not delivered (dry run)",
		"channel", s.Channel,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
