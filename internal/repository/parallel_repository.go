package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

// ParallelSlotConstraint backs slot exclusivity at the storage level.
const ParallelSlotConstraint = "parallels_slot_key"

const parallelColumns = `p.id, p.course_id, p.semester_id, p.classroom_id, p.capacity, p.time_slot, p.day_of_week, p.created_at`

const parallelDetailSelect = `SELECT ` + parallelColumns + `,
        (SELECT COUNT(*) FROM parallel_students ps WHERE ps.parallel_id = p.id) AS enrolled_count,
        c.code AS course_code, c.name AS course_name, c.teacher_id,
        t.first_name AS teacher_first_name, t.last_name AS teacher_last_name,
        r.code AS classroom_code, s.code AS semester_code, s.start_date AS semester_start_date
    FROM parallels p
    JOIN courses c ON c.id = p.course_id
    JOIN persons t ON t.id = c.teacher_id
    JOIN classrooms r ON r.id = p.classroom_id
    JOIN semesters s ON s.id = p.semester_id`

// ParallelRepository persists parallels and their student membership.
type ParallelRepository struct {
	db *sqlx.DB
}

// NewParallelRepository constructs the repository.
func NewParallelRepository(db *sqlx.DB) *ParallelRepository {
	return &ParallelRepository{db: db}
}

// FindDetailByID returns a parallel joined with its course, teacher, classroom and semester.
func (r *ParallelRepository) FindDetailByID(ctx context.Context, id string) (*models.ParallelDetail, error) {
	var detail models.ParallelDetail
	if err := r.db.GetContext(ctx, &detail, parallelDetailSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns parallel details matching the filter, ordered for timetable display.
func (r *ParallelRepository) List(ctx context.Context, filter models.ParallelFilter) ([]models.ParallelDetail, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.SemesterID != "" {
		args = append(args, filter.SemesterID)
		conditions = append(conditions, fmt.Sprintf("p.semester_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("p.course_id = $%d", len(args)))
	}
	if filter.StudentUsername != "" {
		args = append(args, filter.StudentUsername)
		conditions = append(conditions, fmt.Sprintf(`EXISTS (SELECT 1 FROM parallel_students ps
            JOIN persons st ON st.id = ps.student_id
            WHERE ps.parallel_id = p.id AND st.username = $%d)`, len(args)))
	}

	query := parallelDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY s.start_date, c.code, p.day_of_week, p.time_slot"

	var details []models.ParallelDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list parallels: %w", err)
	}
	return details, nil
}

// FindOccupants returns the parallels holding a classroom slot in a semester.
func (r *ParallelRepository) FindOccupants(ctx context.Context, classroomID, semesterID string, day models.DayOfWeek, slot models.TimeSlot) ([]models.Parallel, error) {
	const query = `SELECT ` + parallelColumns + `, 0 AS enrolled_count FROM parallels p
        WHERE p.classroom_id = $1 AND p.semester_id = $2 AND p.day_of_week = $3 AND p.time_slot = $4`
	var parallels []models.Parallel
	if err := r.db.SelectContext(ctx, &parallels, query, classroomID, semesterID, day, slot); err != nil {
		return nil, fmt.Errorf("find slot occupants: %w", err)
	}
	return parallels, nil
}

// Create inserts a parallel. A slot collision surfaces as a unique violation on
// ParallelSlotConstraint.
func (r *ParallelRepository) Create(ctx context.Context, parallel *models.Parallel) error {
	if parallel.ID == "" {
		parallel.ID = uuid.NewString()
	}
	parallel.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO parallels (id, course_id, semester_id, classroom_id, capacity, time_slot, day_of_week, created_at)
        VALUES (:id, :course_id, :semester_id, :classroom_id, :capacity, :time_slot, :day_of_week, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, parallel); err != nil {
		return fmt.Errorf("create parallel: %w", err)
	}
	return nil
}

// Update rewrites the schedulable fields of a parallel. The parallel row is locked and its
// members recounted first, so an enroll committing concurrently cannot push the membership past
// the new capacity.
func (r *ParallelRepository) Update(ctx context.Context, parallel *models.Parallel) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update parallel: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id string
	if err = tx.GetContext(ctx, &id, `SELECT id FROM parallels WHERE id = $1 FOR UPDATE`, parallel.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoRows
		}
		return fmt.Errorf("lock parallel: %w", err)
	}
	var members int
	if err = tx.GetContext(ctx, &members, `SELECT COUNT(*) FROM parallel_students WHERE parallel_id = $1`, parallel.ID); err != nil {
		return fmt.Errorf("count parallel members: %w", err)
	}
	if members > parallel.Capacity {
		return ErrCapacityBelowEnrollment
	}

	const query = `UPDATE parallels SET semester_id = :semester_id, classroom_id = :classroom_id, capacity = :capacity,
        time_slot = :time_slot, day_of_week = :day_of_week WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, parallel); err != nil {
		return fmt.Errorf("update parallel: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update parallel: %w", err)
	}
	return nil
}

// ListStudents returns the students enrolled in a parallel.
func (r *ParallelRepository) ListStudents(ctx context.Context, parallelID string) ([]models.Person, error) {
	const query = `SELECT st.id, st.username, st.first_name, st.last_name, st.email, st.role
        FROM parallel_students ps
        JOIN persons st ON st.id = ps.student_id
        WHERE ps.parallel_id = $1
        ORDER BY st.last_name, st.first_name`
	var students []models.Person
	if err := r.db.SelectContext(ctx, &students, query, parallelID); err != nil {
		return nil, fmt.Errorf("list parallel students: %w", err)
	}
	return students, nil
}

// IsMember reports whether the student is enrolled in the parallel.
func (r *ParallelRepository) IsMember(ctx context.Context, parallelID, studentID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM parallel_students WHERE parallel_id = $1 AND student_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, parallelID, studentID); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}
