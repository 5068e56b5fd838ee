package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

type gradeParallelReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ParallelDetail, error)
	IsMember(ctx context.Context, parallelID, studentID string) (bool, error)
}

type gradeEventSink interface {
	Publish(event models.GradeEvent)
}

// GradeService records grades in the enrollment service and announces them.
type GradeService struct {
	persons   personRepository
	parallels gradeParallelReader
	records   EnrollmentRecordClient
	events    gradeEventSink
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewGradeService constructs the service.
func NewGradeService(persons personRepository, parallels gradeParallelReader, records EnrollmentRecordClient, events gradeEventSink, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		persons:   persons,
		parallels: parallels,
		records:   records,
		events:    events,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// AssignGrade grades a student of one of the teacher's parallels. The record update is
// synchronous; the notification event is published in the background.
func (s *GradeService) AssignGrade(ctx context.Context, teacherID, studentUsername string, req dto.AssignGradeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	grade, ok := models.ParseGrade(req.Grade)
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidGrade, "grade must be one of A, B, C, D, E, F")
	}

	student, err := s.persons.FindByUsername(ctx, studentUsername)
	if err != nil {
		return notFoundOrInternal(err, "student not found", "failed to load student")
	}
	if !student.IsStudent() {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	teacher, err := s.persons.FindByID(ctx, teacherID)
	if err != nil {
		return notFoundOrInternal(err, "teacher not found", "failed to load teacher")
	}

	parallel, err := s.parallels.FindDetailByID(ctx, req.ParallelID)
	if err != nil {
		return notFoundOrInternal(err, "parallel not found", "failed to load parallel")
	}
	if parallel.TeacherID != teacher.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "parallel belongs to another teacher")
	}
	member, err := s.parallels.IsMember(ctx, parallel.ID, student.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !member {
		return appErrors.Clone(appErrors.ErrNotEnrolled, "")
	}

	teacherName := teacher.FullName()
	start := time.Now()
	err = s.records.Grade(ctx, student.Username, models.EnrollmentRequest{
		Course:      parallel.CourseCode,
		TeacherName: teacherName,
		Grade:       string(grade),
		ParallelID:  parallel.ID,
	})
	s.metrics.ObserveRemoteCall("ENROLLMENT_GRADE", err, time.Since(start))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemoteCall.Code, appErrors.ErrRemoteCall.Status, "failed to record grade")
	}

	event := models.GradeEvent{
		EventID:         uuid.NewString(),
		StudentUsername: student.Username,
		TeacherFullName: teacherName,
		Course:          parallel.CourseName,
		Grade:           grade,
		OccurredAt:      s.now().UTC(),
	}
	s.events.Publish(event)

	s.logger.Info("student graded",
		zap.String("student", student.Username),
		zap.String("parallel_id", parallel.ID),
		zap.String("grade", string(grade)),
		zap.String("event_id", event.EventID),
	)
	return nil
}
