package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

type enrollmentFixture struct {
	campus    *fakeCampus
	deliverer *fakeDeliverer
	records   *fakeRecordClient
	svc       *EnrollmentService
	active    *models.Semester
	next      *models.Semester
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()
	campus := newFakeCampus()
	active := semesterAt("sem-fall", models.SemesterFall, 2025, true)
	next := semesterAt("sem-spring", models.SemesterSpring, 2026, false)

	campus.addPerson("t-1", "novak", "Jan", "Novak", models.RoleTeacher)
	campus.addPerson("s-1", "alice", "Alice", "Smith", models.RoleStudent)
	campus.addPerson("s-2", "bob", "Bob", "Brown", models.RoleStudent)

	parallel := func(id, courseID string, capacity int, sem *models.Semester) models.ParallelDetail {
		return models.ParallelDetail{
			Parallel: models.Parallel{
				ID: id, CourseID: courseID, SemesterID: sem.ID, ClassroomID: "room-1",
				Capacity: capacity, TimeSlot: models.Slot1, DayOfWeek: models.Monday,
			},
			CourseCode: "PJV", CourseName: "Java", TeacherID: "t-1",
			TeacherFirstName: "Jan", TeacherLastName: "Novak",
			SemesterCode: sem.Code, SemesterStartDate: sem.StartDate,
		}
	}
	campus.addParallel(parallel("p-1", "c-1", 1, next))
	campus.addParallel(parallel("p-2", "c-1", 5, next))
	campus.addParallel(parallel("p-past", "c-1", 5, semesterAt("sem-old", models.SemesterSpring, 2025, false)))
	campus.addParallel(parallel("p-cur", "c-1", 5, active))

	deliverer := &fakeDeliverer{}
	records := &fakeRecordClient{}
	svc := NewEnrollmentService(campus, fakeParallels{campus}, campus, fakeClock{active: active, next: next},
		NewSchedulingValidator(), deliverer, records, NewMetricsService(), zap.NewNop())

	return &enrollmentFixture{campus: campus, deliverer: deliverer, records: records, svc: svc, active: active, next: next}
}

func TestEnrollmentServiceEnrollUntilFull(t *testing.T) {
	f := newEnrollmentFixture(t)

	require.NoError(t, f.svc.Enroll(context.Background(), "alice", "p-1"))
	assert.True(t, f.campus.isMember("p-1", "s-1"))
	assert.Equal(t, []models.OutboxKind{models.OutboxEnrollmentCreate}, f.campus.outboxKinds())
	require.Len(t, f.deliverer.calls, 1)

	err := f.svc.Enroll(context.Background(), "bob", "p-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))
	assert.Equal(t, "parallel is full", appErrors.FromError(err).Message)
	assert.False(t, f.campus.isMember("p-1", "s-2"))
	assert.Len(t, f.campus.outboxKinds(), 1)
}

func TestEnrollmentServiceSwitchesParallelOfSameCourse(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.campus.enrollDirect("p-1", "s-1")

	require.NoError(t, f.svc.Enroll(context.Background(), "alice", "p-2"))

	assert.False(t, f.campus.isMember("p-1", "s-1"))
	assert.True(t, f.campus.isMember("p-2", "s-1"))
	assert.Equal(t, []models.OutboxKind{models.OutboxEnrollmentDelete, models.OutboxEnrollmentCreate}, f.campus.outboxKinds())
	require.Len(t, f.deliverer.calls, 1)
	assert.Len(t, f.deliverer.calls[0], 2)
}

func TestEnrollmentServiceSwitchesAcrossSemestersInWindow(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.campus.enrollDirect("p-cur", "s-1")

	require.NoError(t, f.svc.Enroll(context.Background(), "alice", "p-2"))

	assert.False(t, f.campus.isMember("p-cur", "s-1"))
	assert.True(t, f.campus.isMember("p-2", "s-1"))
	assert.Equal(t, []models.OutboxKind{models.OutboxEnrollmentDelete, models.OutboxEnrollmentCreate}, f.campus.outboxKinds())
}

func TestEnrollmentServiceKeepsPastSemesterParallel(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.campus.enrollDirect("p-past", "s-1")

	require.NoError(t, f.svc.Enroll(context.Background(), "alice", "p-2"))

	assert.True(t, f.campus.isMember("p-past", "s-1"))
	assert.True(t, f.campus.isMember("p-2", "s-1"))
	assert.Equal(t, []models.OutboxKind{models.OutboxEnrollmentCreate}, f.campus.outboxKinds())
}

func TestEnrollmentServiceRejectsSameParallelTwice(t *testing.T) {
	f := newEnrollmentFixture(t)
	require.NoError(t, f.svc.Enroll(context.Background(), "alice", "p-2"))

	err := f.svc.Enroll(context.Background(), "alice", "p-2")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyEnrolled))
	assert.Equal(t, 1, f.campus.memberCount("p-2"))
}

func TestEnrollmentServiceWindowViolation(t *testing.T) {
	f := newEnrollmentFixture(t)

	err := f.svc.Enroll(context.Background(), "alice", "p-past")
	assert.True(t, errors.Is(err, appErrors.ErrWindowViolation))
	assert.Empty(t, f.campus.outboxKinds())
}

func TestEnrollmentServiceUnknownStudentOrParallel(t *testing.T) {
	f := newEnrollmentFixture(t)

	assert.True(t, errors.Is(f.svc.Enroll(context.Background(), "ghost", "p-1"), appErrors.ErrNotFound))
	assert.True(t, errors.Is(f.svc.Enroll(context.Background(), "alice", "p-missing"), appErrors.ErrNotFound))
	assert.True(t, errors.Is(f.svc.Enroll(context.Background(), "novak", "p-1"), appErrors.ErrNotFound))
}

func TestEnrollmentServiceRemoteFailureKeepsLocalState(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.deliverer.err = errors.New("enrollment service down")

	require.NoError(t, f.svc.Enroll(context.Background(), "alice", "p-2"))
	assert.True(t, f.campus.isMember("p-2", "s-1"))
	assert.Len(t, f.campus.outboxKinds(), 1)
}

func TestEnrollmentServiceDrop(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.campus.enrollDirect("p-2", "s-1")

	require.NoError(t, f.svc.Drop(context.Background(), "alice", "p-2"))
	assert.False(t, f.campus.isMember("p-2", "s-1"))
	assert.Equal(t, []models.OutboxKind{models.OutboxEnrollmentDelete}, f.campus.outboxKinds())

	err := f.svc.Drop(context.Background(), "alice", "p-2")
	assert.True(t, errors.Is(err, appErrors.ErrNotEnrolled))
	assert.Len(t, f.campus.outboxKinds(), 1)
}

func TestEnrollmentServiceDropUnknownParallel(t *testing.T) {
	f := newEnrollmentFixture(t)
	assert.True(t, errors.Is(f.svc.Drop(context.Background(), "alice", "p-missing"), appErrors.ErrNotFound))
}

func TestEnrollmentServiceConcurrentEnrollRespectsCapacity(t *testing.T) {
	f := newEnrollmentFixture(t)
	for i := 0; i < 20; i++ {
		f.campus.addPerson(fmt.Sprintf("cs-%d", i), fmt.Sprintf("student%d", i), "S", fmt.Sprint(i), models.RoleStudent)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := f.svc.Enroll(context.Background(), fmt.Sprintf("student%d", i), "p-1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else if errors.Is(err, appErrors.ErrCapacityExceeded) {
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 19, rejected)
	assert.Equal(t, 1, f.campus.memberCount("p-1"))
}

func TestEnrollmentServiceListings(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.campus.enrollDirect("p-2", "s-1")

	next, err := f.svc.ListNextSemesterParallels(context.Background())
	require.NoError(t, err)
	assert.Len(t, next, 2)
	assert.Equal(t, "Jan Novak", next[0].TeacherName)
	assert.Equal(t, "07:30 - 09:00", next[0].Time)

	mine, err := f.svc.ListStudentParallels(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "p-2", mine[0].ID)
	assert.Equal(t, 1, mine[0].Enrolled)

	current, err := f.svc.ListCurrentSemesterParallels(context.Background())
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "p-cur", current[0].ID)
}

func TestEnrollmentServiceReportWrapsRemoteFailure(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.records.err = errors.New("timeout")

	_, err := f.svc.EnrollmentReport(context.Background(), "alice")
	assert.True(t, errors.Is(err, appErrors.ErrRemoteCall))
}
