package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment/internal/models"
)

func TestParallelRepositoryListBySemesterAndStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParallelRepository(db)

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "course_id", "semester_id", "classroom_id", "capacity", "time_slot", "day_of_week", "created_at",
		"enrolled_count", "course_code", "course_name", "teacher_id", "teacher_first_name", "teacher_last_name",
		"classroom_code", "semester_code", "semester_start_date"}).
		AddRow("par-1", "course-1", "sem-2", "room-1", 20, "SLOT2", "TUESDAY", time.Now(),
			3, "PJV", "Java", "t-1", "Jan", "Novak", "KN:E-107", "SPRING2026", start)
	mock.ExpectQuery(`p\.semester_id = \$1 AND EXISTS .*st\.username = \$2`).
		WithArgs("sem-2", "alice").
		WillReturnRows(rows)

	details, err := repo.List(context.Background(), models.ParallelFilter{SemesterID: "sem-2", StudentUsername: "alice"})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, 3, details[0].EnrolledCount)
	assert.Equal(t, "Jan Novak", details[0].TeacherFullName())
	assert.Equal(t, models.Slot2, details[0].TimeSlot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParallelRepositoryFindOccupants(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParallelRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "semester_id", "classroom_id", "capacity", "time_slot", "day_of_week", "created_at", "enrolled_count"}).
		AddRow("par-1", "course-1", "sem-1", "room-1", 20, "SLOT1", "MONDAY", time.Now(), 0)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.classroom_id = $1 AND p.semester_id = $2 AND p.day_of_week = $3 AND p.time_slot = $4")).
		WithArgs("room-1", "sem-1", models.Monday, models.Slot1).
		WillReturnRows(rows)

	occupants, err := repo.FindOccupants(context.Background(), "room-1", "sem-1", models.Monday, models.Slot1)
	require.NoError(t, err)
	require.Len(t, occupants, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParallelRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParallelRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM parallels WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.Parallel{ID: "missing"})
	assert.ErrorIs(t, err, ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParallelRepositoryUpdateRecountsUnderLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParallelRepository(db)

	// a concurrent enroll already committed a second member
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM parallels WHERE id = $1 FOR UPDATE")).
		WithArgs("par-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("par-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM parallel_students WHERE parallel_id = $1")).
		WithArgs("par-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.Parallel{ID: "par-1", Capacity: 1})
	assert.ErrorIs(t, err, ErrCapacityBelowEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParallelRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewParallelRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM parallels WHERE id = $1 FOR UPDATE")).
		WithArgs("par-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("par-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM parallel_students WHERE parallel_id = $1")).
		WithArgs("par-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE parallels SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), &models.Parallel{ID: "par-1", Capacity: 1, TimeSlot: models.Slot2, DayOfWeek: models.Friday})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
