package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]models.Course
	err     error
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error) {
	var out []models.Course
	for _, c := range m.courses {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.err != nil {
		return m.err
	}
	course.ID = "c-new"
	m.courses[course.ID] = *course
	return nil
}

type mockClassroomRepo map[string]models.Classroom

func (m mockClassroomRepo) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c, ok := m[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func newCourseFixture() (*CourseService, *fakeCampus) {
	campus := newFakeCampus()
	active := semesterAt("sem-fall", models.SemesterFall, 2025, true)
	next := semesterAt("sem-spring", models.SemesterSpring, 2026, false)
	courses := &mockCourseRepo{courses: map[string]models.Course{
		"c-1": {ID: "c-1", TeacherID: "t-1", Name: "Java", Code: "PJV"},
		"c-2": {ID: "c-2", TeacherID: "t-2", Name: "Databases", Code: "DBS"},
	}}
	classrooms := mockClassroomRepo{"room-1": {ID: "room-1", Code: "KN:E-107", Capacity: 30}}
	semesters := newMockSemesterRepo(active, next)
	svc := NewCourseService(courses, classrooms, semesters, fakeParallels{campus}, fakeClock{active: active, next: next}, nil, nil, nil)
	return svc, campus
}

func parallelReq() dto.ParallelRequest {
	return dto.ParallelRequest{
		CourseID:    "c-1",
		SemesterID:  "sem-spring",
		ClassroomID: "room-1",
		Capacity:    20,
		TimeSlot:    models.Slot1,
		DayOfWeek:   models.Monday,
	}
}

func TestCourseServiceCreateParallelRejectsOccupiedSlot(t *testing.T) {
	svc, campus := newCourseFixture()

	_, err := svc.CreateParallel(context.Background(), "t-1", parallelReq())
	require.NoError(t, err)
	require.Len(t, campus.parallels, 1)

	_, err = svc.CreateParallel(context.Background(), "t-1", parallelReq())
	assert.True(t, errors.Is(err, appErrors.ErrScheduleConflict))
	assert.Len(t, campus.parallels, 1)

	other := parallelReq()
	other.TimeSlot = models.Slot2
	_, err = svc.CreateParallel(context.Background(), "t-1", other)
	assert.NoError(t, err)
}

func TestCourseServiceCreateParallelChecks(t *testing.T) {
	svc, _ := newCourseFixture()

	foreign := parallelReq()
	foreign.CourseID = "c-2"
	_, err := svc.CreateParallel(context.Background(), "t-1", foreign)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	tooBig := parallelReq()
	tooBig.Capacity = 31
	_, err = svc.CreateParallel(context.Background(), "t-1", tooBig)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	badSlot := parallelReq()
	badSlot.TimeSlot = "SLOT9"
	_, err = svc.CreateParallel(context.Background(), "t-1", badSlot)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	noRoom := parallelReq()
	noRoom.ClassroomID = "room-x"
	_, err = svc.CreateParallel(context.Background(), "t-1", noRoom)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestCourseServiceUpdateParallelExcludesItself(t *testing.T) {
	svc, campus := newCourseFixture()
	created, err := svc.CreateParallel(context.Background(), "t-1", parallelReq())
	require.NoError(t, err)
	d := campus.parallels[created.ID]
	d.TeacherID = "t-1"
	campus.parallels[created.ID] = d

	req := parallelReq()
	req.Capacity = 25
	updated, err := svc.UpdateParallel(context.Background(), "t-1", created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Capacity)

	_, err = svc.UpdateParallel(context.Background(), "t-2", created.ID, req)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCourseServiceUpdateParallelCapacityBelowEnrollment(t *testing.T) {
	svc, campus := newCourseFixture()
	created, err := svc.CreateParallel(context.Background(), "t-1", parallelReq())
	require.NoError(t, err)
	d := campus.parallels[created.ID]
	d.TeacherID = "t-1"
	campus.parallels[created.ID] = d
	campus.enrollDirect(created.ID, "s-1")
	campus.enrollDirect(created.ID, "s-2")

	req := parallelReq()
	req.Capacity = 1
	_, err = svc.UpdateParallel(context.Background(), "t-1", created.ID, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

// racingParallels enrolls extra students after the service has read the enrolled count.
type racingParallels struct {
	fakeParallels
	parallelID string
	students   []string
}

func (r racingParallels) FindOccupants(ctx context.Context, classroomID, semesterID string, day models.DayOfWeek, slot models.TimeSlot) ([]models.Parallel, error) {
	r.mu.Lock()
	for _, sid := range r.students {
		r.enrollDirect(r.parallelID, sid)
	}
	r.mu.Unlock()
	return r.fakeParallels.FindOccupants(ctx, classroomID, semesterID, day, slot)
}

func TestCourseServiceUpdateParallelConcurrentEnroll(t *testing.T) {
	svc, campus := newCourseFixture()
	created, err := svc.CreateParallel(context.Background(), "t-1", parallelReq())
	require.NoError(t, err)
	d := campus.parallels[created.ID]
	d.TeacherID = "t-1"
	campus.parallels[created.ID] = d
	campus.enrollDirect(created.ID, "s-1")

	svc.parallels = racingParallels{fakeParallels: fakeParallels{campus}, parallelID: created.ID, students: []string{"s-2"}}

	req := parallelReq()
	req.Capacity = 1
	_, err = svc.UpdateParallel(context.Background(), "t-1", created.ID, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 20, campus.parallels[created.ID].Capacity)
	assert.Equal(t, 2, campus.memberCount(created.ID))
}

func TestCourseServiceCreateCourse(t *testing.T) {
	svc, _ := newCourseFixture()

	course, err := svc.CreateCourse(context.Background(), "t-1", dto.CreateCourseRequest{Name: "Algorithms", Code: "ALG", Credits: 6, Language: models.LanguageEnglish})
	require.NoError(t, err)
	assert.Equal(t, "t-1", course.TeacherID)

	_, err = svc.CreateCourse(context.Background(), "t-1", dto.CreateCourseRequest{Name: "Algorithms", Code: "ALG", Credits: 40, Language: models.LanguageEnglish})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCourseServiceListParallelStudents(t *testing.T) {
	svc, campus := newCourseFixture()
	campus.addPerson("s-1", "alice", "Alice", "Smith", models.RoleStudent)
	campus.addParallel(models.ParallelDetail{Parallel: models.Parallel{ID: "p-1", CourseID: "c-1"}, TeacherID: "t-1"})
	campus.enrollDirect("p-1", "s-1")

	students, err := svc.ListParallelStudents(context.Background(), "t-1", "p-1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "alice", students[0].Username)

	_, err = svc.ListParallelStudents(context.Background(), "t-2", "p-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCourseServiceListCourses(t *testing.T) {
	svc, _ := newCourseFixture()

	courses, err := svc.ListCourses(context.Background(), "t-2")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "DBS", courses[0].Code)

	courses, err = svc.ListCourses(context.Background(), "t-9")
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
}
