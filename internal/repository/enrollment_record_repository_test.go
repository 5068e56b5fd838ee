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

var recordRowColumns = []string{"id", "student_username", "course", "teacher_name", "grade", "status", "parallel_id", "created_at", "updated_at"}

func TestEnrollmentRecordRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRecordRepository(db)

	rows := sqlmock.NewRows(recordRowColumns).
		AddRow("rec-1", "alice", "PJV", "Jan Novak", "B", "PASSED", "par-1", time.Now(), time.Now()).
		AddRow("rec-2", "alice", "SQL", "Eva Mala", nil, "IN_PROGRESS", "par-2", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_records WHERE student_username = $1")).
		WithArgs("alice").
		WillReturnRows(rows)

	records, err := repo.ListByStudent(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Grade)
	assert.Equal(t, models.GradeB, *records[0].Grade)
	assert.Nil(t, records[1].Grade)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRecordRepositoryUpsertKeepsGradeOnConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRecordRepository(db)

	rows := sqlmock.NewRows(recordRowColumns).
		AddRow("rec-1", "alice", "PJV", "Jan Novak", "A", "PASSED", "par-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT ON CONSTRAINT enrollment_records_student_parallel_key")).
		WillReturnRows(rows)

	record := &models.EnrollmentRecord{StudentUsername: "alice", Course: "PJV", TeacherName: "Jan Novak", ParallelID: "par-1", Status: models.StatusInProgress}
	require.NoError(t, repo.Upsert(context.Background(), record))
	assert.Equal(t, "rec-1", record.ID)
	require.NotNil(t, record.Grade)
	assert.Equal(t, models.StatusPassed, record.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRecordRepositoryDeleteReportsMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollment_records")).
		WithArgs("alice", "par-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "alice", "par-9")
	require.NoError(t, err)
	assert.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
