package mail

import (
	"context"
	"net/mail"
	"sync"

	"go.uber.org/zap"
)

// Console logs messages instead of sending them and keeps a copy for inspection.
type Console struct {
	from   mail.Address
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*Console)(nil)

func NewConsole(from mail.Address, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{from: from, logger: logger}
}

func (c *Console) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.Info("email sent",
		zap.String("from", c.from.String()),
		zap.String("to", msg.To.String()),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

// Sent returns the messages delivered so far.
func (c *Console) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}
