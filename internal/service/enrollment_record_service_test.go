package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

func TestEnrollmentRecordServiceLifecycle(t *testing.T) {
	repo := newMemoryRecordRepo()
	svc := NewEnrollmentRecordService(repo, nil, nil)
	ctx := context.Background()
	req := models.EnrollmentRequest{Course: "PJV", TeacherName: "Jan Novak", ParallelID: "p-1"}

	created, err := svc.Create(ctx, "alice", req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, created.Status)
	assert.Nil(t, created.Grade)

	graded, err := svc.Grade(ctx, "alice", models.EnrollmentRequest{Grade: "C", ParallelID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPassed, graded.Status)

	// replaying the create keeps the grade
	_, err = svc.Create(ctx, "alice", req)
	require.NoError(t, err)
	records, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Grade)
	assert.Equal(t, models.GradeC, *records[0].Grade)

	require.NoError(t, svc.Delete(ctx, "alice", "p-1"))
	assert.True(t, errors.Is(svc.Delete(ctx, "alice", "p-1"), appErrors.ErrNotFound))

	records, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestEnrollmentRecordServiceGradeErrors(t *testing.T) {
	svc := NewEnrollmentRecordService(newMemoryRecordRepo(), nil, nil)

	_, err := svc.Grade(context.Background(), "alice", models.EnrollmentRequest{Grade: "Z", ParallelID: "p-1"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidGrade))

	_, err = svc.Grade(context.Background(), "alice", models.EnrollmentRequest{Grade: "A", ParallelID: "p-1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Create(context.Background(), "alice", models.EnrollmentRequest{Course: "PJV"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
