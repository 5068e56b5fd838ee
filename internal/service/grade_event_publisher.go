package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/pkg/jobs"
)

const gradeEventJobType = "grade_event.publish"

type streamPublisher interface {
	Publish(ctx context.Context, eventID string, payload []byte) (string, error)
}

// GradeEventPublisher hands grade events to a background queue that appends them to the
// event stream. Publish never blocks and never fails the caller.
type GradeEventPublisher struct {
	stream  streamPublisher
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewGradeEventPublisher builds the publisher and its queue. Call Start before Publish.
func NewGradeEventPublisher(stream streamPublisher, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *GradeEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &GradeEventPublisher{stream: stream, metrics: metrics, logger: logger}
	cfg.Logger = logger
	cfg.DeadLetter = p.deadLetter
	p.queue = jobs.NewQueue("grade-events", p.handle, cfg)
	return p
}

// Start launches the queue workers.
func (p *GradeEventPublisher) Start(ctx context.Context) { p.queue.Start(ctx) }

// Stop drains in-flight publishes.
func (p *GradeEventPublisher) Stop() { p.queue.Stop() }

// Publish schedules event for delivery.
func (p *GradeEventPublisher) Publish(event models.GradeEvent) {
	err := p.queue.Enqueue(jobs.Job{
		ID:       event.EventID,
		Type:     gradeEventJobType,
		Payload:  event,
		Enqueued: time.Now().UTC(),
	})
	if err != nil {
		p.metrics.RecordEventPublished(err)
		p.logger.Error("grade event dropped", zap.String("event_id", event.EventID), zap.String("student", event.StudentUsername), zap.Error(err))
	}
}

func (p *GradeEventPublisher) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.GradeEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode grade event: %w", err)
	}
	id, err := p.stream.Publish(ctx, event.EventID, payload)
	p.metrics.RecordEventPublished(err)
	if err != nil {
		return err
	}
	p.logger.Debug("grade event published", zap.String("event_id", event.EventID), zap.String("stream_id", id))
	return nil
}

func (p *GradeEventPublisher) deadLetter(job jobs.Job, err error) {
	p.logger.Error("grade event publish abandoned",
		zap.String("event_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	)
}
