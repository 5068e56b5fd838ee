package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

// MembershipTx is the set of writes allowed inside an enroll or drop transaction.
type MembershipTx interface {
	LockStudent(ctx context.Context, studentID string) error
	LockParallel(ctx context.Context, parallelID string) (*models.Parallel, error)
	ListHeldForCourse(ctx context.Context, studentID, courseID string, from time.Time) ([]models.Parallel, error)
	IsMember(ctx context.Context, parallelID, studentID string) (bool, error)
	AddStudent(ctx context.Context, parallelID, studentID string) error
	RemoveStudent(ctx context.Context, parallelID, studentID string) (bool, error)
	InsertOutbox(ctx context.Context, entry *models.OutboxEntry) error
}

// MembershipStore runs membership changes and their outbox rows in one transaction.
type MembershipStore struct {
	db *sqlx.DB
}

// NewMembershipStore constructs the store.
func NewMembershipStore(db *sqlx.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

// InTx runs fn inside a transaction, committing only if fn returns nil.
func (s *MembershipStore) InTx(ctx context.Context, fn func(MembershipTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&membershipTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit membership tx: %w", err)
	}
	return nil
}

type membershipTx struct {
	tx *sqlx.Tx
}

// LockStudent serialises membership changes of one student. It is taken before any
// parallel lock.
func (m *membershipTx) LockStudent(ctx context.Context, studentID string) error {
	var id string
	if err := m.tx.GetContext(ctx, &id, `SELECT id FROM persons WHERE id = $1 FOR UPDATE`, studentID); err != nil {
		return fmt.Errorf("lock student: %w", err)
	}
	return nil
}

// LockParallel takes a row lock on the parallel so concurrent enrolls into it serialise,
// then counts its members under that lock.
func (m *membershipTx) LockParallel(ctx context.Context, parallelID string) (*models.Parallel, error) {
	var p models.Parallel
	const lockQuery = `SELECT p.id, p.course_id, p.semester_id, p.classroom_id, p.capacity, p.time_slot, p.day_of_week, p.created_at
        FROM parallels p WHERE p.id = $1 FOR UPDATE`
	if err := m.tx.GetContext(ctx, &p, lockQuery, parallelID); err != nil {
		return nil, err
	}
	if err := m.tx.GetContext(ctx, &p.EnrolledCount, `SELECT COUNT(*) FROM parallel_students WHERE parallel_id = $1`, parallelID); err != nil {
		return nil, fmt.Errorf("count parallel members: %w", err)
	}
	return &p, nil
}

// ListHeldForCourse returns the student's parallels of the course whose semester starts at or
// after from. Parallels of earlier semesters are history and never listed.
func (m *membershipTx) ListHeldForCourse(ctx context.Context, studentID, courseID string, from time.Time) ([]models.Parallel, error) {
	const query = `SELECT ` + parallelColumns + `, 0 AS enrolled_count
        FROM parallels p
        JOIN parallel_students ps ON ps.parallel_id = p.id
        JOIN semesters s ON s.id = p.semester_id
        WHERE ps.student_id = $1 AND p.course_id = $2 AND s.start_date >= $3`
	var held []models.Parallel
	if err := m.tx.SelectContext(ctx, &held, query, studentID, courseID, from); err != nil {
		return nil, fmt.Errorf("list held parallels: %w", err)
	}
	return held, nil
}

func (m *membershipTx) IsMember(ctx context.Context, parallelID, studentID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM parallel_students WHERE parallel_id = $1 AND student_id = $2)`
	if err := m.tx.GetContext(ctx, &exists, query, parallelID, studentID); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (m *membershipTx) AddStudent(ctx context.Context, parallelID, studentID string) error {
	const query = `INSERT INTO parallel_students (parallel_id, student_id, enrolled_at) VALUES ($1, $2, $3)`
	if _, err := m.tx.ExecContext(ctx, query, parallelID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add parallel student: %w", err)
	}
	return nil
}

// RemoveStudent reports false when the student was not a member.
func (m *membershipTx) RemoveStudent(ctx context.Context, parallelID, studentID string) (bool, error) {
	res, err := m.tx.ExecContext(ctx, `DELETE FROM parallel_students WHERE parallel_id = $1 AND student_id = $2`, parallelID, studentID)
	if err != nil {
		return false, fmt.Errorf("remove parallel student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove parallel student: %w", err)
	}
	return n > 0, nil
}

// InsertOutbox records a pending remote call. CreatedAt is stamped per entry because
// NOW() is fixed for the whole transaction.
func (m *membershipTx) InsertOutbox(ctx context.Context, entry *models.OutboxEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.Status = models.OutboxPending
	entry.CreatedAt = now
	entry.NextAttemptAt = now
	const query = `INSERT INTO outbox_entries (id, kind, student_username, parallel_id, payload, status, attempts, next_attempt_at, created_at)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)`
	if _, err := m.tx.ExecContext(ctx, query, entry.ID, entry.Kind, entry.StudentUsername, entry.ParallelID,
		string(entry.Payload), entry.Status, entry.Attempts, entry.NextAttemptAt, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}
