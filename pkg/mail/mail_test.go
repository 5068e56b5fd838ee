package mail

import (
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment/pkg/config"
)

func TestNewSelectsDriver(t *testing.T) {
	m, err := New(config.MailConfig{Driver: "console", FromAddress: "sis@example.com"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Console{}, m)

	m, err = New(config.MailConfig{Driver: "sendgrid", SendGridAPIKey: "key"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SendGrid{}, m)

	_, err = New(config.MailConfig{Driver: "sendgrid"}, nil)
	assert.Error(t, err)

	_, err = New(config.MailConfig{Driver: "pigeon"}, nil)
	assert.Error(t, err)
}

func TestConsoleRecordsMessages(t *testing.T) {
	c := NewConsole(mail.Address{Address: "sis@example.com"}, nil)
	msg := Message{To: mail.Address{Address: "novak@fel.cvut.cz"}, Subject: "s", Body: "b"}

	require.NoError(t, c.Send(context.Background(), msg))
	assert.Equal(t, []Message{msg}, c.Sent())
}

func TestConsoleHonoursCancelledContext(t *testing.T) {
	c := NewConsole(mail.Address{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.Send(ctx, Message{}))
	assert.Empty(t, c.Sent())
}
