package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

// Unique constraints on courses.
const (
	CourseNameConstraint = "courses_name_key"
	CourseCodeConstraint = "courses_code_key"
)

const courseColumns = `id, teacher_id, name, code, credits, language, created_at`

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	if err := r.db.GetContext(ctx, &c, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByTeacher returns courses owned by a teacher.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, `SELECT `+courseColumns+` FROM courses WHERE teacher_id = $1 ORDER BY code`, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	return courses, nil
}

// Create inserts a course. Unique violations are returned wrapped for the caller to map.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO courses (id, teacher_id, name, code, credits, language, created_at)
        VALUES (:id, :teacher_id, :name, :code, :credits, :language, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}
