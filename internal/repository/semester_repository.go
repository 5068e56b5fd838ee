package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

const semesterColumns = `id, code, semester_type, start_date, end_date, is_active, created_at, updated_at`

// SemesterRepository persists semesters and the single active flag.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns every semester ordered by start date.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, `SELECT `+semesterColumns+` FROM semesters ORDER BY start_date`); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindByID returns a semester by ID.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	var s models.Semester
	if err := r.db.GetContext(ctx, &s, `SELECT `+semesterColumns+` FROM semesters WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByCode returns a semester by its code, e.g. FALL2025.
func (r *SemesterRepository) FindByCode(ctx context.Context, code string) (*models.Semester, error) {
	var s models.Semester
	if err := r.db.GetContext(ctx, &s, `SELECT `+semesterColumns+` FROM semesters WHERE code = $1`, code); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindActive returns the active semester.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	var s models.Semester
	if err := r.db.GetContext(ctx, &s, `SELECT `+semesterColumns+` FROM semesters WHERE is_active = TRUE`); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts an inactive semester.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	semester.CreatedAt = now
	semester.UpdatedAt = now
	semester.IsActive = false
	const query = `INSERT INTO semesters (id, code, semester_type, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :code, :semester_type, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// SetActive marks the provided semester as active and deactivates the rest in one
// transaction, so no reader ever observes zero or two active semesters.
func (r *SemesterRepository) SetActive(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE semesters SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, now, id); err != nil {
		return fmt.Errorf("deactivate other semesters: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE semesters SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("activate semester: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}
