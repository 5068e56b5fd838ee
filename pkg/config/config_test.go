package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadForDefaults(t *testing.T) {
	cfg, err := LoadFor("enrollment-api", 8081)
	require.NoError(t, err)

	assert.Equal(t, "enrollment-api", cfg.ServiceName)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "notificationTopic", cfg.Events.Stream)
	assert.Equal(t, 7*24*time.Hour, cfg.Notifications.DedupTTL)
	assert.Equal(t, "fel.cvut.cz", cfg.Notifications.EmailDomain)
	assert.Equal(t, "console", cfg.Mail.Driver)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("OUTBOX_BATCH_SIZE", "7")
	t.Setenv("OUTBOX_MAX_BACKOFF", "90s")
	t.Setenv("ENROLLMENT_SERVICE_URL", "http://enrollment:8081/")
	t.Setenv("ENROLLMENT_CLIENT_TIMEOUT", "not-a-duration")
	t.Setenv("MAIL_DRIVER", "SendGrid")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "sis-api", cfg.ServiceName)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Outbox.MaxBackoff)
	assert.Equal(t, "http://enrollment:8081", cfg.EnrollmentClient.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.EnrollmentClient.Timeout)
	assert.Equal(t, "sendgrid", cfg.Mail.Driver)
}
