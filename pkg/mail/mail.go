package mail

import (
	"context"
	"fmt"
	"net/mail"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/pkg/config"
)

// Message is a plain-text e-mail.
type Message struct {
	To      mail.Address
	Subject string
	Body    string
}

// Mailer delivers messages. Send returns only after the provider accepted or rejected it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a mailer from configuration.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	switch cfg.Driver {
	case "", "console":
		return NewConsole(from, logger), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("mail driver sendgrid requires SENDGRID_API_KEY")
		}
		return NewSendGrid(cfg.SendGridAPIKey, from), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
