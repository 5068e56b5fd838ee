package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

// ClassroomRepository reads classrooms; classroom CRUD lives with the admin tooling.
type ClassroomRepository struct {
	db *sqlx.DB
}

func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	var c models.Classroom
	if err := r.db.GetContext(ctx, &c, `SELECT id, code, capacity FROM classrooms WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}
