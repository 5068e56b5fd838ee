package models

import (
	"encoding/json"
	"time"
)

// OutboxKind names the remote call an outbox entry stands for.
type OutboxKind string

const (
	OutboxEnrollmentCreate OutboxKind = "ENROLLMENT_CREATE"
	OutboxEnrollmentDelete OutboxKind = "ENROLLMENT_DELETE"
)

// OutboxStatus tracks delivery of an entry.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxDelivered OutboxStatus = "DELIVERED"
	OutboxFailed    OutboxStatus = "FAILED"
)

// OutboxEntry is a remote enrollment-record call committed in the same transaction as the
// membership change it mirrors.
type OutboxEntry struct {
	ID              string          `db:"id" json:"id"`
	Kind            OutboxKind      `db:"kind" json:"kind"`
	StudentUsername string          `db:"student_username" json:"student_username"`
	ParallelID      string          `db:"parallel_id" json:"parallel_id"`
	Payload         json.RawMessage `db:"payload" json:"payload"`
	Status          OutboxStatus    `db:"status" json:"status"`
	Attempts        int             `db:"attempts" json:"attempts"`
	LastError       *string         `db:"last_error" json:"last_error,omitempty"`
	NextAttemptAt   time.Time       `db:"next_attempt_at" json:"next_attempt_at"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	DeliveredAt     *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
}
