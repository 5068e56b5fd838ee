package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env         string
	ServiceName string
	Port        int
	APIPrefix   string

	Database         DatabaseConfig
	Redis            RedisConfig
	JWT              JWTConfig
	Log              LogConfig
	EnrollmentClient EnrollmentClientConfig
	Outbox           OutboxConfig
	Events           EventsConfig
	Notifications    NotificationsConfig
	Mail             MailConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Format string
}

// EnrollmentClientConfig points the SIS API at the enrollment-record service.
type EnrollmentClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// OutboxConfig tunes the background delivery of pending enrollment-record calls.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// EventsConfig configures grade event publication.
type EventsConfig struct {
	Stream         string
	PublishWorkers int
	PublishRetries int
	RetryDelay     time.Duration
	ActiveCacheTTL time.Duration
}

// NotificationsConfig configures the grade notification consumer.
type NotificationsConfig struct {
	Group       string
	Consumer    string
	BatchSize   int
	Block       time.Duration
	ClaimIdle   time.Duration
	DedupTTL    time.Duration
	EmailDomain string
}

// MailConfig selects and configures the outgoing mailer.
type MailConfig struct {
	Driver         string
	SendGridAPIKey string
	FromName       string
	FromAddress    string
}

// Load reads the SIS API configuration.
func Load() (*Config, error) {
	return LoadFor("sis-api", 8080)
}

// LoadFor reads configuration for one deployable. service and port are the defaults for
// SERVICE_NAME and PORT; the environment still wins.
func LoadFor(service string, port int) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	v.SetDefault("SERVICE_NAME", service)
	v.SetDefault("PORT", port)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.ServiceName = v.GetString("SERVICE_NAME")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.EnrollmentClient = EnrollmentClientConfig{
		BaseURL: strings.TrimRight(v.GetString("ENROLLMENT_SERVICE_URL"), "/"),
		Timeout: parseDuration(v.GetString("ENROLLMENT_CLIENT_TIMEOUT"), 5*time.Second),
	}

	cfg.Outbox = OutboxConfig{
		PollInterval: parseDuration(v.GetString("OUTBOX_POLL_INTERVAL"), 5*time.Second),
		BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		MaxAttempts:  v.GetInt("OUTBOX_MAX_ATTEMPTS"),
		BaseBackoff:  parseDuration(v.GetString("OUTBOX_BASE_BACKOFF"), 2*time.Second),
		MaxBackoff:   parseDuration(v.GetString("OUTBOX_MAX_BACKOFF"), 5*time.Minute),
	}

	cfg.Events = EventsConfig{
		Stream:         v.GetString("EVENTS_STREAM"),
		PublishWorkers: v.GetInt("EVENTS_PUBLISH_WORKERS"),
		PublishRetries: v.GetInt("EVENTS_PUBLISH_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("EVENTS_RETRY_DELAY"), time.Second),
		ActiveCacheTTL: parseDuration(v.GetString("ACTIVE_SEMESTER_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Group:       v.GetString("NOTIFY_GROUP"),
		Consumer:    v.GetString("NOTIFY_CONSUMER"),
		BatchSize:   v.GetInt("NOTIFY_BATCH_SIZE"),
		Block:       parseDuration(v.GetString("NOTIFY_BLOCK"), 5*time.Second),
		ClaimIdle:   parseDuration(v.GetString("NOTIFY_CLAIM_IDLE"), time.Minute),
		DedupTTL:    parseDuration(v.GetString("NOTIFY_DEDUP_TTL"), 7*24*time.Hour),
		EmailDomain: v.GetString("NOTIFY_EMAIL_DOMAIN"),
	}

	cfg.Mail = MailConfig{
		Driver:         strings.ToLower(v.GetString("MAIL_DRIVER")),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sis")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENROLLMENT_SERVICE_URL", "http://localhost:8081")
	v.SetDefault("ENROLLMENT_CLIENT_TIMEOUT", "5s")

	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 20)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 10)
	v.SetDefault("OUTBOX_BASE_BACKOFF", "2s")
	v.SetDefault("OUTBOX_MAX_BACKOFF", "5m")

	v.SetDefault("EVENTS_STREAM", "notificationTopic")
	v.SetDefault("EVENTS_PUBLISH_WORKERS", 1)
	v.SetDefault("EVENTS_PUBLISH_RETRIES", 5)
	v.SetDefault("EVENTS_RETRY_DELAY", "1s")
	v.SetDefault("ACTIVE_SEMESTER_CACHE_TTL", "10m")

	v.SetDefault("NOTIFY_GROUP", "notification-service")
	v.SetDefault("NOTIFY_CONSUMER", "notification-worker-1")
	v.SetDefault("NOTIFY_BATCH_SIZE", 10)
	v.SetDefault("NOTIFY_BLOCK", "5s")
	v.SetDefault("NOTIFY_CLAIM_IDLE", "1m")
	v.SetDefault("NOTIFY_DEDUP_TTL", "168h")
	v.SetDefault("NOTIFY_EMAIL_DOMAIN", "fel.cvut.cz")

	v.SetDefault("MAIL_DRIVER", "console")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "SIS")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@sis.local")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
