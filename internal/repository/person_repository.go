package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

const personColumns = `id, username, first_name, last_name, email, role`

// PersonRepository reads admins, teachers and students.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs the repository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// FindByID returns a person by ID.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	var p models.Person
	if err := r.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByUsername returns a person by username.
func (r *PersonRepository) FindByUsername(ctx context.Context, username string) (*models.Person, error) {
	var p models.Person
	if err := r.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM persons WHERE username = $1`, username); err != nil {
		return nil, err
	}
	return &p, nil
}
