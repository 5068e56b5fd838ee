package service

import (
	"context"
	"encoding/json"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/pkg/mail"
	"github.com/noah-isme/sis-enrollment/pkg/stream"
)

const (
	notificationSubject   = "SIS - [SIS NOTIFICATION]"
	notificationDedupKey  = "notify:processed:"
	notificationLeaseKey  = "notify:inflight:"
	notificationSeparator = "------------------------------------------------------------------------"
)

type streamConsumer interface {
	EnsureGroup(ctx context.Context) error
	Read(ctx context.Context) ([]stream.Message, error)
	Reclaim(ctx context.Context) ([]stream.Message, error)
	Ack(ctx context.Context, ids ...string) error
}

type dedupStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// NotificationConfig tunes the consumer.
type NotificationConfig struct {
	EmailDomain  string
	DedupTTL     time.Duration
	LeaseTTL     time.Duration
	ReclaimEvery time.Duration
	ErrorBackoff time.Duration
}

// NotificationService consumes grade events and e-mails the graded student. An event is
// marked processed only after its mail went out; until then it holds a short lease that
// expires on its own, so a crashed or failed delivery is retried after reclaim.
type NotificationService struct {
	consumer streamConsumer
	dedup    dedupStore
	mailer   mail.Mailer
	cfg      NotificationConfig
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs the consumer.
func NewNotificationService(consumer streamConsumer, dedup dedupStore, mailer mail.Mailer, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "fel.cvut.cz"
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 7 * 24 * time.Hour
	}
	if cfg.ReclaimEvery <= 0 {
		cfg.ReclaimEvery = time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.ReclaimEvery
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{consumer: consumer, dedup: dedup, mailer: mailer, cfg: cfg, metrics: metrics, logger: logger}
}

// Run consumes until ctx is cancelled.
func (s *NotificationService) Run(ctx context.Context) error {
	if err := s.consumer.EnsureGroup(ctx); err != nil {
		return err
	}
	log := s.logger.Sugar()
	log.Infow("notification consumer started", "domain", s.cfg.EmailDomain)

	lastReclaim := time.Time{}
	for ctx.Err() == nil {
		if time.Since(lastReclaim) >= s.cfg.ReclaimEvery {
			lastReclaim = time.Now()
			reclaimed, err := s.consumer.Reclaim(ctx)
			if err != nil {
				log.Warnw("reclaim failed", "error", err)
			}
			if len(reclaimed) > 0 {
				log.Infow("reclaimed pending grade events", "count", len(reclaimed))
				s.process(ctx, reclaimed)
			}
		}

		msgs, err := s.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warnw("read grade events failed", "error", err)
			s.sleep(ctx, s.cfg.ErrorBackoff)
			continue
		}
		s.process(ctx, msgs)
	}

	log.Infow("notification consumer stopped")
	return nil
}

func (s *NotificationService) process(ctx context.Context, msgs []stream.Message) {
	for _, msg := range msgs {
		if err := s.Handle(ctx, msg); err != nil {
			s.logger.Warn("grade notification not delivered",
				zap.String("stream_id", msg.ID),
				zap.String("event_id", msg.EventID),
				zap.Error(err),
			)
		}
	}
}

// Handle processes one stream message. The message is acknowledged unless the mail could
// not be sent.
func (s *NotificationService) Handle(ctx context.Context, msg stream.Message) error {
	var event models.GradeEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.metrics.RecordNotification("invalid")
		s.logger.Error("discarding malformed grade event", zap.String("stream_id", msg.ID), zap.Error(err))
		return s.consumer.Ack(ctx, msg.ID)
	}
	eventID := msg.EventID
	if eventID == "" {
		eventID = event.EventID
	}
	if eventID == "" {
		eventID = msg.ID
	}

	processedKey := notificationDedupKey + eventID
	done, err := s.dedup.Exists(ctx, processedKey)
	if err != nil {
		s.metrics.RecordNotification("failed")
		return fmt.Errorf("check %s: %w", eventID, err)
	}
	if done {
		s.metrics.RecordNotification("duplicate")
		s.logger.Debug("duplicate grade event", zap.String("event_id", eventID))
		return s.consumer.Ack(ctx, msg.ID)
	}

	// another consumer is mailing this event; leave the message pending
	leaseKey := notificationLeaseKey + eventID
	leased, err := s.dedup.Claim(ctx, leaseKey, s.cfg.LeaseTTL)
	if err != nil {
		s.metrics.RecordNotification("failed")
		return fmt.Errorf("lease %s: %w", eventID, err)
	}
	if !leased {
		s.metrics.RecordNotification("in_flight")
		return nil
	}

	message := BuildGradeNotification(event, s.cfg.EmailDomain)
	if err := s.mailer.Send(ctx, message); err != nil {
		if derr := s.dedup.Delete(ctx, leaseKey); derr != nil {
			s.logger.Warn("failed to release notification lease", zap.String("event_id", eventID), zap.Error(derr))
		}
		s.metrics.RecordNotification("failed")
		return fmt.Errorf("send notification %s: %w", eventID, err)
	}

	if _, err := s.dedup.Claim(ctx, processedKey, s.cfg.DedupTTL); err != nil {
		s.logger.Error("failed to mark grade event processed", zap.String("event_id", eventID), zap.Error(err))
	}
	if err := s.dedup.Delete(ctx, leaseKey); err != nil {
		s.logger.Warn("failed to release notification lease", zap.String("event_id", eventID), zap.Error(err))
	}

	s.metrics.RecordNotification("sent")
	s.logger.Info("email sent", zap.String("to", message.To.Address), zap.String("event_id", eventID))
	return s.consumer.Ack(ctx, msg.ID)
}

// BuildGradeNotification renders the grade e-mail for event.
func BuildGradeNotification(event models.GradeEvent, domain string) mail.Message {
	var body strings.Builder
	body.WriteString("This email was sent from the SIS Study Information System.\n")
	body.WriteString(notificationSeparator + "\n")
	fmt.Fprintf(&body, "You have received the grade of %s in the subject %s by the teacher %s.",
		event.Grade, event.Course, event.TeacherFullName)

	return mail.Message{
		To:      netmail.Address{Address: event.StudentUsername + "@" + domain},
		Subject: notificationSubject,
		Body:    body.String(),
	}
}

func (s *NotificationService) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
