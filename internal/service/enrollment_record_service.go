package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

type enrollmentRecordRepository interface {
	ListByStudent(ctx context.Context, username string) ([]models.EnrollmentRecord, error)
	FindByStudentAndParallel(ctx context.Context, username, parallelID string) (*models.EnrollmentRecord, error)
	Upsert(ctx context.Context, record *models.EnrollmentRecord) error
	UpdateGrade(ctx context.Context, record *models.EnrollmentRecord) error
	Delete(ctx context.Context, username, parallelID string) (bool, error)
}

type enrollmentRecordPayload struct {
	Course     string `validate:"required"`
	ParallelID string `validate:"required"`
}

// EnrollmentRecordService owns the enrollment-record store. Create is an upsert so the
// SIS side may replay it.
type EnrollmentRecordService struct {
	repo      enrollmentRecordRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentRecordService constructs the service.
func NewEnrollmentRecordService(repo enrollmentRecordRepository, validate *validator.Validate, logger *zap.Logger) *EnrollmentRecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentRecordService{repo: repo, validator: validate, logger: logger}
}

// List returns every record of the student.
func (s *EnrollmentRecordService) List(ctx context.Context, username string) ([]models.EnrollmentRecord, error) {
	records, err := s.repo.ListByStudent(ctx, username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if records == nil {
		records = []models.EnrollmentRecord{}
	}
	return records, nil
}

// Create records a new in-progress enrollment, or refreshes an existing one.
func (s *EnrollmentRecordService) Create(ctx context.Context, username string, req models.EnrollmentRequest) (*models.EnrollmentRecord, error) {
	if err := s.validator.Struct(enrollmentRecordPayload{Course: req.Course, ParallelID: req.ParallelID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	record := &models.EnrollmentRecord{
		StudentUsername: username,
		Course:          req.Course,
		TeacherName:     req.TeacherName,
		ParallelID:      req.ParallelID,
	}
	record.SetGrade(nil)
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("enrollment recorded", zap.String("student", username), zap.String("parallel_id", req.ParallelID))
	return record, nil
}

// Grade sets the grade of the student's record for req.ParallelID.
func (s *EnrollmentRecordService) Grade(ctx context.Context, username string, req models.EnrollmentRequest) (*models.EnrollmentRecord, error) {
	grade, ok := models.ParseGrade(req.Grade)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidGrade, "grade must be one of A, B, C, D, E, F")
	}
	if req.ParallelID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "parallelId is required")
	}

	record, err := s.repo.FindByStudentAndParallel(ctx, username, req.ParallelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	record.SetGrade(&grade)
	if req.TeacherName != "" {
		record.TeacherName = req.TeacherName
	}
	if err := s.repo.UpdateGrade(ctx, record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade enrollment")
	}
	s.logger.Info("enrollment graded", zap.String("student", username), zap.String("parallel_id", req.ParallelID), zap.String("grade", string(grade)))
	return record, nil
}

// Delete removes the record; ErrNotFound when there is none.
func (s *EnrollmentRecordService) Delete(ctx context.Context, username, parallelID string) error {
	deleted, err := s.repo.Delete(ctx, username, parallelID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	s.logger.Info("enrollment deleted", zap.String("student", username), zap.String("parallel_id", parallelID))
	return nil
}
