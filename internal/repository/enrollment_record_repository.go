package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

const enrollmentRecordColumns = `id, student_username, course, teacher_name, grade, status, parallel_id, created_at, updated_at`

// EnrollmentRecordRepository persists the enrollment service's records.
type EnrollmentRecordRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRecordRepository constructs the repository.
func NewEnrollmentRecordRepository(db *sqlx.DB) *EnrollmentRecordRepository {
	return &EnrollmentRecordRepository{db: db}
}

// ListByStudent returns every record of a student, newest first.
func (r *EnrollmentRecordRepository) ListByStudent(ctx context.Context, username string) ([]models.EnrollmentRecord, error) {
	const query = `SELECT ` + enrollmentRecordColumns + ` FROM enrollment_records WHERE student_username = $1 ORDER BY created_at DESC`
	var records []models.EnrollmentRecord
	if err := r.db.SelectContext(ctx, &records, query, username); err != nil {
		return nil, fmt.Errorf("list enrollment records: %w", err)
	}
	return records, nil
}

// FindByStudentAndParallel returns the record for one enrollment.
func (r *EnrollmentRecordRepository) FindByStudentAndParallel(ctx context.Context, username, parallelID string) (*models.EnrollmentRecord, error) {
	const query = `SELECT ` + enrollmentRecordColumns + ` FROM enrollment_records WHERE student_username = $1 AND parallel_id = $2`
	var record models.EnrollmentRecord
	if err := r.db.GetContext(ctx, &record, query, username, parallelID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert creates the record, or refreshes course and teacher if it already exists. An
// existing grade is kept so a replayed create never erases it.
func (r *EnrollmentRecordRepository) Upsert(ctx context.Context, record *models.EnrollmentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO enrollment_records (id, student_username, course, teacher_name, grade, status, parallel_id, created_at, updated_at)
        VALUES (:id, :student_username, :course, :teacher_name, :grade, :status, :parallel_id, :created_at, :updated_at)
        ON CONFLICT ON CONSTRAINT enrollment_records_student_parallel_key
        DO UPDATE SET course = EXCLUDED.course, teacher_name = EXCLUDED.teacher_name, updated_at = EXCLUDED.updated_at
        RETURNING ` + enrollmentRecordColumns
	rows, err := r.db.NamedQueryContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("upsert enrollment record: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.StructScan(record); err != nil {
			return fmt.Errorf("scan enrollment record: %w", err)
		}
	}
	return rows.Err()
}

// UpdateGrade stores the grade, its derived status and the grading teacher.
func (r *EnrollmentRecordRepository) UpdateGrade(ctx context.Context, record *models.EnrollmentRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollment_records SET grade = :grade, status = :status, teacher_name = :teacher_name, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("update enrollment grade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoRows
	}
	return nil
}

// Delete removes the record for one enrollment. It reports false when nothing matched.
func (r *EnrollmentRecordRepository) Delete(ctx context.Context, username, parallelID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollment_records WHERE student_username = $1 AND parallel_id = $2`, username, parallelID)
	if err != nil {
		return false, fmt.Errorf("delete enrollment record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment record: %w", err)
	}
	return n > 0, nil
}
