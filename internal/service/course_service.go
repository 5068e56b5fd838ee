package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/internal/repository"
	"github.com/noah-isme/sis-enrollment/pkg/database"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
}

type classroomRepository interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type semesterFinder interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type parallelWriter interface {
	FindDetailByID(ctx context.Context, id string) (*models.ParallelDetail, error)
	FindOccupants(ctx context.Context, classroomID, semesterID string, day models.DayOfWeek, slot models.TimeSlot) ([]models.Parallel, error)
	Create(ctx context.Context, parallel *models.Parallel) error
	Update(ctx context.Context, parallel *models.Parallel) error
	ListStudents(ctx context.Context, parallelID string) ([]models.Person, error)
}

// CourseService lets teachers manage their courses and schedule parallels.
type CourseService struct {
	courses    courseRepository
	classrooms classroomRepository
	semesters  semesterFinder
	parallels  parallelWriter
	clock      semesterClock
	rules      *SchedulingValidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(
	courses courseRepository,
	classrooms classroomRepository,
	semesters semesterFinder,
	parallels parallelWriter,
	clock semesterClock,
	rules *SchedulingValidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if rules == nil {
		rules = NewSchedulingValidator()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:    courses,
		classrooms: classrooms,
		semesters:  semesters,
		parallels:  parallels,
		clock:      clock,
		rules:      rules,
		validator:  validate,
		logger:     logger,
	}
}

// CreateCourse creates a course owned by teacherID.
func (s *CourseService) CreateCourse(ctx context.Context, teacherID string, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if err := s.rules.ValidateCourse(req.Name, req.Code, req.Credits, req.Language); err != nil {
		return nil, err
	}

	course := &models.Course{
		TeacherID: teacherID,
		Name:      req.Name,
		Code:      req.Code,
		Credits:   req.Credits,
		Language:  req.Language,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		if database.IsUniqueViolation(err, repository.CourseNameConstraint, repository.CourseCodeConstraint) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course name or code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("code", course.Code), zap.String("teacher_id", teacherID))
	return course, nil
}

// ListCourses returns the teacher's own courses.
func (s *CourseService) ListCourses(ctx context.Context, teacherID string) ([]models.Course, error) {
	courses, err := s.courses.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, nil
}

// CreateParallel schedules a new parallel of one of the teacher's courses.
func (s *CourseService) CreateParallel(ctx context.Context, teacherID string, req dto.ParallelRequest) (*models.ParallelDetail, error) {
	parallel := &models.Parallel{
		CourseID:    req.CourseID,
		SemesterID:  req.SemesterID,
		ClassroomID: req.ClassroomID,
		Capacity:    req.Capacity,
		TimeSlot:    req.TimeSlot,
		DayOfWeek:   req.DayOfWeek,
	}
	if err := s.checkParallel(ctx, teacherID, req, ""); err != nil {
		return nil, err
	}
	if err := s.parallels.Create(ctx, parallel); err != nil {
		if database.IsUniqueViolation(err, repository.ParallelSlotConstraint) {
			return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create parallel")
	}
	s.logger.Info("parallel created",
		zap.String("parallel_id", parallel.ID),
		zap.String("course_id", parallel.CourseID),
		zap.String("slot", string(parallel.TimeSlot)),
		zap.String("day", string(parallel.DayOfWeek)),
	)
	return s.detail(ctx, parallel.ID)
}

// UpdateParallel reschedules a parallel. Capacity cannot drop below the current enrollment.
func (s *CourseService) UpdateParallel(ctx context.Context, teacherID, parallelID string, req dto.ParallelRequest) (*models.ParallelDetail, error) {
	current, err := s.detail(ctx, parallelID)
	if err != nil {
		return nil, err
	}
	if current.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parallel belongs to another teacher")
	}
	if req.CourseID != current.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a parallel cannot move to another course")
	}
	if req.Capacity < current.EnrolledCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity is below current enrollment")
	}
	if err := s.checkParallel(ctx, teacherID, req, parallelID); err != nil {
		return nil, err
	}

	updated := current.Parallel
	updated.SemesterID = req.SemesterID
	updated.ClassroomID = req.ClassroomID
	updated.Capacity = req.Capacity
	updated.TimeSlot = req.TimeSlot
	updated.DayOfWeek = req.DayOfWeek
	if err := s.parallels.Update(ctx, &updated); err != nil {
		switch {
		case database.IsUniqueViolation(err, repository.ParallelSlotConstraint):
			return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "")
		case errors.Is(err, repository.ErrCapacityBelowEnrollment):
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity is below current enrollment")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parallel not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update parallel")
	}
	return s.detail(ctx, parallelID)
}

// ListParallelStudents returns the members of a parallel owned by the teacher.
func (s *CourseService) ListParallelStudents(ctx context.Context, teacherID, parallelID string) ([]dto.StudentView, error) {
	detail, err := s.detail(ctx, parallelID)
	if err != nil {
		return nil, err
	}
	if detail.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parallel belongs to another teacher")
	}
	students, err := s.parallels.ListStudents(ctx, parallelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	views := make([]dto.StudentView, 0, len(students))
	for _, st := range students {
		views = append(views, dto.StudentView{Username: st.Username, FirstName: st.FirstName, LastName: st.LastName, Email: st.Email})
	}
	return views, nil
}

func (s *CourseService) checkParallel(ctx context.Context, teacherID string, req dto.ParallelRequest, excludingID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parallel payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return notFoundOrInternal(err, "course not found", "failed to load course")
	}
	if course.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
	}

	classroom, err := s.classrooms.FindByID(ctx, req.ClassroomID)
	if err != nil {
		return notFoundOrInternal(err, "classroom not found", "failed to load classroom")
	}
	if err := s.rules.ValidateParallelCapacity(req.Capacity, classroom.Capacity); err != nil {
		return err
	}

	semester, err := s.semesters.FindByID(ctx, req.SemesterID)
	if err != nil {
		return notFoundOrInternal(err, "semester not found", "failed to load semester")
	}
	active, err := s.clock.GetActive(ctx)
	if err != nil {
		return err
	}
	if err := s.rules.ValidateParallelSemester(semester.StartDate, active.StartDate); err != nil {
		return err
	}

	occupants, err := s.parallels.FindOccupants(ctx, req.ClassroomID, req.SemesterID, req.DayOfWeek, req.TimeSlot)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule")
	}
	return s.rules.ValidateTimeSlotExclusivity(occupants, req.ClassroomID, req.SemesterID, req.DayOfWeek, req.TimeSlot, excludingID)
}

func (s *CourseService) detail(ctx context.Context, id string) (*models.ParallelDetail, error) {
	detail, err := s.parallels.FindDetailByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "parallel not found", "failed to load parallel")
	}
	return detail, nil
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
