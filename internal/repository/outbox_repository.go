package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

const outboxColumns = `id, kind, student_username, parallel_id, payload, status, attempts, last_error, next_attempt_at, created_at, delivered_at`

// Only the oldest pending entry per (student, parallel) is claimable, so a create and a
// later delete for the same record are always applied in commit order.
const outboxHeadOfLine = `NOT EXISTS (
        SELECT 1 FROM outbox_entries prev
        WHERE prev.student_username = o.student_username
          AND prev.parallel_id = o.parallel_id
          AND prev.status = 'PENDING'
          AND prev.created_at < o.created_at)`

// OutboxRepository claims and settles pending enrollment-record calls.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs the repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ClaimDue leases up to limit due entries until leaseUntil. Rows locked by another
// dispatcher are skipped.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int, leaseUntil time.Time) ([]models.OutboxEntry, error) {
	query := `UPDATE outbox_entries SET next_attempt_at = $2
        WHERE id IN (
            SELECT o.id FROM outbox_entries o
            WHERE o.status = 'PENDING' AND o.next_attempt_at <= NOW() AND ` + outboxHeadOfLine + `
            ORDER BY o.created_at
            LIMIT $1
            FOR UPDATE SKIP LOCKED)
        RETURNING ` + outboxColumns
	var entries []models.OutboxEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit, leaseUntil); err != nil {
		return nil, fmt.Errorf("claim due outbox entries: %w", err)
	}
	sortByCreated(entries)
	return entries, nil
}

// ClaimByIDs leases the given entries if they are still pending and first in line.
func (r *OutboxRepository) ClaimByIDs(ctx context.Context, ids []string, leaseUntil time.Time) ([]models.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `UPDATE outbox_entries SET next_attempt_at = $2
        WHERE id IN (
            SELECT o.id FROM outbox_entries o
            WHERE o.id = ANY($1) AND o.status = 'PENDING' AND ` + outboxHeadOfLine + `
            FOR UPDATE SKIP LOCKED)
        RETURNING ` + outboxColumns
	var entries []models.OutboxEntry
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(ids), leaseUntil); err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	sortByCreated(entries)
	return entries, nil
}

// MarkDelivered settles an entry.
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id string) error {
	const query = `UPDATE outbox_entries SET status = 'DELIVERED', attempts = attempts + 1, last_error = NULL, delivered_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark outbox delivered: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id, lastError string, nextAttempt time.Time) error {
	const query = `UPDATE outbox_entries SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lastError, nextAttempt); err != nil {
		return fmt.Errorf("mark outbox retry: %w", err)
	}
	return nil
}

// MarkFailed parks an entry after its final attempt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	const query = `UPDATE outbox_entries SET status = 'FAILED', attempts = attempts + 1, last_error = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

// CountPending returns the backlog size for the metrics gauge.
func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM outbox_entries WHERE status = 'PENDING'`); err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return n, nil
}

func sortByCreated(entries []models.OutboxEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
