package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	key  string
	from *sgmail.Email
}

var _ Mailer = (*SendGrid)(nil)

func NewSendGrid(key string, from mail.Address) *SendGrid {
	return &SendGrid{key: key, from: sgmail.NewEmail(from.Name, from.Address)}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := sgmail.NewSingleEmail(s.from, msg.Subject, sgmail.NewEmail(msg.To.Name, msg.To.Address), msg.Body, "")

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, sendGridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", msg.To.Address, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send to %s: status %d: %s", msg.To.Address, res.StatusCode, res.Body)
	}
	return nil
}
