package email

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleSender logs messages instead of sending them. Used when no SMTP
// host is configured.
type ConsoleSender struct {
	logger *zap.Logger
}

// NewConsoleSender creates a console sender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send logs the message.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (console)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}

var _ Sender = (*ConsoleSender)(nil)
