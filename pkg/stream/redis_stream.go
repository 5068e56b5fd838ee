// Package stream carries domain events over Redis Streams. A stream with a consumer group
// gives pull-based, at-least-once delivery: entries stay pending until acknowledged and
// can be reclaimed from a consumer that died mid-flight.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldEventID = "event_id"
	fieldPayload = "payload"
)

// Message is a single stream entry.
type Message struct {
	ID      string
	EventID string
	Payload []byte
}

// Publisher appends events to a stream.
type Publisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewPublisher builds a publisher for stream. maxLen caps the stream length approximately;
// zero keeps every entry.
func NewPublisher(client redis.Cmdable, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends payload keyed by eventID and returns the stream entry ID.
func (p *Publisher) Publish(ctx context.Context, eventID string, payload []byte) (string, error) {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{fieldEventID: eventID, fieldPayload: string(payload)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}

// ConsumerConfig identifies a consumer within a group.
type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	BatchSize int64
	Block     time.Duration
	ClaimIdle time.Duration
}

// Consumer reads a stream through a consumer group.
type Consumer struct {
	client redis.Cmdable
	cfg    ConsumerConfig
}

// NewConsumer builds a group consumer.
func NewConsumer(client redis.Cmdable, cfg ConsumerConfig) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = time.Minute
	}
	return &Consumer{client: client, cfg: cfg}
}

// EnsureGroup creates the consumer group (and the stream) when missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", c.cfg.Group, c.cfg.Stream, err)
	}
	return nil
}

// Read blocks up to the configured duration for new entries. An empty slice means the
// block window elapsed without traffic.
func (c *Consumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}
	var out []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			out = append(out, Decode(m))
		}
	}
	return out, nil
}

// Reclaim takes over entries left pending by any consumer for longer than ClaimIdle. It
// follows the XAUTOCLAIM cursor until the whole pending list has been scanned.
func (c *Consumer) Reclaim(ctx context.Context) ([]Message, error) {
	var out []Message
	cursor := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.ClaimIdle,
			Start:    cursor,
			Count:    c.cfg.BatchSize,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return out, nil
			}
			return out, fmt.Errorf("xautoclaim %s: %w", c.cfg.Stream, err)
		}
		for _, m := range msgs {
			out = append(out, Decode(m))
		}
		if next == "" || next == "0-0" || next == cursor {
			return out, nil
		}
		cursor = next
	}
}

// Ack acknowledges processed entries.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", c.cfg.Stream, err)
	}
	return nil
}

// Decode converts a raw stream entry.
func Decode(m redis.XMessage) Message {
	msg := Message{ID: m.ID}
	if v, ok := m.Values[fieldEventID]; ok {
		msg.EventID = fmt.Sprint(v)
	}
	switch v := m.Values[fieldPayload].(type) {
	case string:
		msg.Payload = []byte(v)
	case []byte:
		msg.Payload = v
	}
	return msg
}
