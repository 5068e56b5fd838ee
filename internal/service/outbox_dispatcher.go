package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

type outboxRepository interface {
	ClaimDue(ctx context.Context, limit int, leaseUntil time.Time) ([]models.OutboxEntry, error)
	ClaimByIDs(ctx context.Context, ids []string, leaseUntil time.Time) ([]models.OutboxEntry, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id, lastError string, nextAttempt time.Time) error
	MarkFailed(ctx context.Context, id, lastError string) error
	CountPending(ctx context.Context) (int, error)
}

// EnrollmentRecordClient is the remote enrollment-record API.
type EnrollmentRecordClient interface {
	List(ctx context.Context, username string) ([]models.EnrollmentRecord, error)
	Create(ctx context.Context, username string, req models.EnrollmentRequest) error
	Grade(ctx context.Context, username string, req models.EnrollmentRequest) error
	Delete(ctx context.Context, username, parallelID string) error
}

// OutboxDispatcherConfig tunes delivery.
type OutboxDispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	// Lease is how long a claimed entry is hidden from other dispatchers.
	Lease time.Duration
}

// OutboxDispatcher delivers committed enrollment-record calls, first synchronously right
// after the business transaction and then from a background loop until they succeed or
// run out of attempts.
type OutboxDispatcher struct {
	repo    outboxRepository
	client  EnrollmentRecordClient
	cfg     OutboxDispatcherConfig
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewOutboxDispatcher constructs the dispatcher.
func NewOutboxDispatcher(repo outboxRepository, client EnrollmentRecordClient, cfg OutboxDispatcherConfig, metrics *MetricsService, logger *zap.Logger) *OutboxDispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxDispatcher{repo: repo, client: client, cfg: cfg, metrics: metrics, logger: logger, now: time.Now}
}

// DeliverNow attempts the given entries once, in creation order. Entries that fail stay
// pending for Run. The returned error is the first delivery failure, for logging only.
func (d *OutboxDispatcher) DeliverNow(ctx context.Context, ids ...string) error {
	entries, err := d.repo.ClaimByIDs(ctx, ids, d.now().Add(d.cfg.Lease))
	if err != nil {
		return err
	}
	var first error
	for _, entry := range entries {
		if err := d.deliver(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Run polls for due entries until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	log := d.logger.Sugar()
	log.Infow("outbox dispatcher started", "interval", d.cfg.PollInterval, "batch", d.cfg.BatchSize)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infow("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(ctx); err != nil && ctx.Err() == nil {
				log.Warnw("outbox poll failed", "error", err)
			}
		}
	}
}

// DispatchDue delivers one batch of due entries and reports how many were delivered.
func (d *OutboxDispatcher) DispatchDue(ctx context.Context) (int, error) {
	entries, err := d.repo.ClaimDue(ctx, d.cfg.BatchSize, d.now().Add(d.cfg.Lease))
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.deliver(ctx, entry); err == nil {
			delivered++
		}
	}
	if pending, err := d.repo.CountPending(ctx); err == nil {
		d.metrics.SetOutboxPending(pending)
	}
	return delivered, nil
}

func (d *OutboxDispatcher) deliver(ctx context.Context, entry models.OutboxEntry) error {
	callErr := d.call(ctx, entry)
	if callErr == nil {
		if err := d.repo.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox entry delivered", zap.String("id", entry.ID), zap.Error(err))
			return err
		}
		d.metrics.RecordOutboxDelivery(string(entry.Kind), "delivered")
		return nil
	}

	attempts := entry.Attempts + 1
	fields := []zap.Field{
		zap.String("id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.String("student", entry.StudentUsername),
		zap.String("parallel_id", entry.ParallelID),
		zap.Int("attempts", attempts),
		zap.Error(callErr),
	}

	if attempts >= d.cfg.MaxAttempts || isPermanent(callErr) {
		if err := d.repo.MarkFailed(ctx, entry.ID, callErr.Error()); err != nil {
			d.logger.Error("failed to mark outbox entry failed", zap.String("id", entry.ID), zap.Error(err))
		}
		d.metrics.RecordOutboxDelivery(string(entry.Kind), "failed")
		d.logger.Error("outbox entry abandoned", fields...)
		return callErr
	}

	next := d.now().Add(d.backoff(attempts))
	if err := d.repo.MarkRetry(ctx, entry.ID, callErr.Error(), next); err != nil {
		d.logger.Error("failed to reschedule outbox entry", zap.String("id", entry.ID), zap.Error(err))
	}
	d.metrics.RecordOutboxDelivery(string(entry.Kind), "retry")
	d.logger.Warn("outbox delivery failed", append(fields, zap.Time("next_attempt_at", next))...)
	return callErr
}

func (d *OutboxDispatcher) call(ctx context.Context, entry models.OutboxEntry) error {
	start := time.Now()
	var err error
	switch entry.Kind {
	case models.OutboxEnrollmentCreate:
		var req models.EnrollmentRequest
		if err = json.Unmarshal(entry.Payload, &req); err != nil {
			return permanentError{fmt.Errorf("decode outbox payload: %w", err)}
		}
		err = d.client.Create(ctx, entry.StudentUsername, req)
	case models.OutboxEnrollmentDelete:
		err = d.client.Delete(ctx, entry.StudentUsername, entry.ParallelID)
	default:
		return permanentError{fmt.Errorf("unknown outbox kind %q", entry.Kind)}
	}
	d.metrics.ObserveRemoteCall(string(entry.Kind), err, time.Since(start))
	return err
}

func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	_, ok := err.(permanentError)
	return ok
}
