package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/pkg/database"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

const activeSemesterCacheKey = "sis:semester:active"

type semesterRepository interface {
	List(ctx context.Context) ([]models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindByCode(ctx context.Context, code string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	Create(ctx context.Context, semester *models.Semester) error
	SetActive(ctx context.Context, id string) error
}

// SemesterService is the semester clock: it owns which semester is active and derives
// next and phase from it.
type SemesterService struct {
	repo      semesterRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs the service. cache may be nil.
func NewSemesterService(repo semesterRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns every semester with its phase.
func (s *SemesterService) List(ctx context.Context) ([]dto.SemesterView, error) {
	semesters, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	active, err := s.GetActive(ctx)
	if err != nil && !errors.Is(err, appErrors.ErrNoActiveSemester) {
		return nil, err
	}
	views := make([]dto.SemesterView, 0, len(semesters))
	for _, sem := range semesters {
		view := dto.SemesterView{Semester: sem}
		if active != nil {
			view.Phase = Phase(sem, *active)
		}
		views = append(views, view)
	}
	return views, nil
}

// Create opens an inactive semester for year and type.
func (s *SemesterService) Create(ctx context.Context, req dto.CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	semester := models.NewSemester(req.Year, req.Type)
	if existing, err := s.repo.FindByCode(ctx, semester.Code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "semester already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester")
	}
	if err := s.repo.Create(ctx, &semester); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "semester already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	s.logger.Info("semester created", zap.String("code", semester.Code))
	return &semester, nil
}

// SetActive makes the semester the only active one.
func (s *SemesterService) SetActive(ctx context.Context, id string) (*models.Semester, error) {
	if err := s.repo.SetActive(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		case database.IsUniqueViolation(err):
			return nil, appErrors.Clone(appErrors.ErrConflict, "another semester was activated concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate semester")
	}
	s.cache.Invalidate(ctx, activeSemesterCacheKey)

	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	s.logger.Info("semester activated", zap.String("code", semester.Code))
	return semester, nil
}

// GetActive returns the active semester or ErrNoActiveSemester.
func (s *SemesterService) GetActive(ctx context.Context) (*models.Semester, error) {
	var cached models.Semester
	if s.cache.Get(ctx, activeSemesterCacheKey, &cached) {
		return &cached, nil
	}
	semester, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoActiveSemester, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active semester")
	}
	s.cache.Set(ctx, activeSemesterCacheKey, semester, s.cacheTTL)
	return semester, nil
}

// GetNext returns the semester following the active one: SPRING y is followed by FALL y,
// FALL y by SPRING y+1.
func (s *SemesterService) GetNext(ctx context.Context) (*models.Semester, error) {
	active, err := s.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	next, err := s.repo.FindByCode(ctx, active.Next())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "next semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load next semester")
	}
	return next, nil
}

// Phase places semester relative to the active one.
func Phase(semester, active models.Semester) models.SemesterPhase {
	switch {
	case semester.StartDate.After(active.StartDate):
		return models.PhaseFuture
	case semester.StartDate.Before(active.StartDate):
		return models.PhasePast
	default:
		return models.PhaseActive
	}
}
