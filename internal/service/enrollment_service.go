package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/internal/repository"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

type personRepository interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
	FindByUsername(ctx context.Context, username string) (*models.Person, error)
}

type parallelReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ParallelDetail, error)
	List(ctx context.Context, filter models.ParallelFilter) ([]models.ParallelDetail, error)
}

type membershipStore interface {
	InTx(ctx context.Context, fn func(repository.MembershipTx) error) error
}

type semesterClock interface {
	GetActive(ctx context.Context) (*models.Semester, error)
	GetNext(ctx context.Context) (*models.Semester, error)
}

type outboxDeliverer interface {
	DeliverNow(ctx context.Context, ids ...string) error
}

// EnrollmentService moves students in and out of parallels. Membership and the matching
// enrollment-record call are committed together; the call itself is delivered afterwards.
type EnrollmentService struct {
	persons   personRepository
	parallels parallelReader
	store     membershipStore
	clock     semesterClock
	rules     *SchedulingValidator
	outbox    outboxDeliverer
	records   EnrollmentRecordClient
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEnrollmentService constructs the orchestrator.
func NewEnrollmentService(
	persons personRepository,
	parallels parallelReader,
	store membershipStore,
	clock semesterClock,
	rules *SchedulingValidator,
	outbox outboxDeliverer,
	records EnrollmentRecordClient,
	metrics *MetricsService,
	logger *zap.Logger,
) *EnrollmentService {
	if rules == nil {
		rules = NewSchedulingValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		persons:   persons,
		parallels: parallels,
		store:     store,
		clock:     clock,
		rules:     rules,
		outbox:    outbox,
		records:   records,
		metrics:   metrics,
		logger:    logger,
	}
}

// Enroll adds the student to the parallel. A parallel of the same course the student
// already holds in that semester is dropped in the same transaction.
func (s *EnrollmentService) Enroll(ctx context.Context, username, parallelID string) (err error) {
	defer func() { s.metrics.RecordEnrollment("enroll", err) }()

	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return err
	}
	detail, err := s.loadParallel(ctx, parallelID)
	if err != nil {
		return err
	}
	active, err := s.clock.GetActive(ctx)
	if err != nil {
		return err
	}
	if err := s.rules.ValidateEnrollmentWindow(detail.SemesterStartDate, active.StartDate); err != nil {
		return err
	}

	createPayload, err := json.Marshal(models.EnrollmentRequest{
		Course:      detail.CourseCode,
		TeacherName: detail.TeacherFullName(),
		ParallelID:  detail.ID,
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode enrollment")
	}

	var (
		outboxIDs []string
		switched  string
	)
	err = s.store.InTx(ctx, func(tx repository.MembershipTx) error {
		if err := tx.LockStudent(ctx, student.ID); err != nil {
			return err
		}
		locked, err := tx.LockParallel(ctx, parallelID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "parallel not found")
			}
			return fmt.Errorf("lock parallel: %w", err)
		}

		member, err := tx.IsMember(ctx, locked.ID, student.ID)
		if err != nil {
			return err
		}
		if member {
			return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student is already enrolled in this parallel")
		}
		if err := s.rules.ValidateCapacity(*locked); err != nil {
			return err
		}

		held, err := tx.ListHeldForCourse(ctx, student.ID, locked.CourseID, active.StartDate)
		if err != nil {
			return err
		}
		var dup *DuplicateEnrollmentError
		if err := s.rules.ValidateNoDuplicateEnrollment(held, locked.CourseID, locked.ID); errors.As(err, &dup) {
			if _, err := tx.RemoveStudent(ctx, dup.Held.ID, student.ID); err != nil {
				return err
			}
			drop := &models.OutboxEntry{
				Kind:            models.OutboxEnrollmentDelete,
				StudentUsername: student.Username,
				ParallelID:      dup.Held.ID,
				Payload:         json.RawMessage(`{}`),
			}
			if err := tx.InsertOutbox(ctx, drop); err != nil {
				return err
			}
			outboxIDs = append(outboxIDs, drop.ID)
			switched = dup.Held.ID
		}

		if err := tx.AddStudent(ctx, locked.ID, student.ID); err != nil {
			return err
		}
		create := &models.OutboxEntry{
			Kind:            models.OutboxEnrollmentCreate,
			StudentUsername: student.Username,
			ParallelID:      locked.ID,
			Payload:         createPayload,
		}
		if err := tx.InsertOutbox(ctx, create); err != nil {
			return err
		}
		outboxIDs = append(outboxIDs, create.ID)
		return nil
	})
	if err != nil {
		return asAppError(err, "failed to enroll student")
	}

	s.logger.Info("student enrolled",
		zap.String("student", username),
		zap.String("parallel_id", parallelID),
		zap.String("switched_from", switched),
	)
	s.deliver(ctx, outboxIDs)
	return nil
}

// Drop removes the student from the parallel. Dropping twice fails with ErrNotEnrolled.
func (s *EnrollmentService) Drop(ctx context.Context, username, parallelID string) (err error) {
	defer func() { s.metrics.RecordEnrollment("drop", err) }()

	student, err := s.loadStudent(ctx, username)
	if err != nil {
		return err
	}

	var outboxIDs []string
	err = s.store.InTx(ctx, func(tx repository.MembershipTx) error {
		if err := tx.LockStudent(ctx, student.ID); err != nil {
			return err
		}
		if _, err := tx.LockParallel(ctx, parallelID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "parallel not found")
			}
			return fmt.Errorf("lock parallel: %w", err)
		}
		removed, err := tx.RemoveStudent(ctx, parallelID, student.ID)
		if err != nil {
			return err
		}
		if !removed {
			return appErrors.Clone(appErrors.ErrNotEnrolled, "")
		}
		entry := &models.OutboxEntry{
			Kind:            models.OutboxEnrollmentDelete,
			StudentUsername: student.Username,
			ParallelID:      parallelID,
			Payload:         json.RawMessage(`{}`),
		}
		if err := tx.InsertOutbox(ctx, entry); err != nil {
			return err
		}
		outboxIDs = append(outboxIDs, entry.ID)
		return nil
	})
	if err != nil {
		return asAppError(err, "failed to drop student")
	}

	s.logger.Info("student dropped", zap.String("student", username), zap.String("parallel_id", parallelID))
	s.deliver(ctx, outboxIDs)
	return nil
}

// ListNextSemesterParallels returns the parallels students may enroll into.
func (s *EnrollmentService) ListNextSemesterParallels(ctx context.Context) ([]dto.ParallelView, error) {
	next, err := s.clock.GetNext(ctx)
	if err != nil {
		return nil, err
	}
	return s.listParallels(ctx, models.ParallelFilter{SemesterID: next.ID})
}

// ListCurrentSemesterParallels returns the parallels of the active semester.
func (s *EnrollmentService) ListCurrentSemesterParallels(ctx context.Context) ([]dto.ParallelView, error) {
	active, err := s.clock.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.listParallels(ctx, models.ParallelFilter{SemesterID: active.ID})
}

// ListStudentParallels returns every parallel the student belongs to.
func (s *EnrollmentService) ListStudentParallels(ctx context.Context, username string) ([]dto.ParallelView, error) {
	return s.listParallels(ctx, models.ParallelFilter{StudentUsername: username})
}

// EnrollmentReport returns the student's enrollment records from the enrollment service.
func (s *EnrollmentService) EnrollmentReport(ctx context.Context, username string) ([]models.EnrollmentRecord, error) {
	start := time.Now()
	records, err := s.records.List(ctx, username)
	s.metrics.ObserveRemoteCall("ENROLLMENT_LIST", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteCall.Code, appErrors.ErrRemoteCall.Status, "failed to load enrollment report")
	}
	return records, nil
}

func (s *EnrollmentService) listParallels(ctx context.Context, filter models.ParallelFilter) ([]dto.ParallelView, error) {
	details, err := s.parallels.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parallels")
	}
	return dto.NewParallelViews(details), nil
}

func (s *EnrollmentService) loadStudent(ctx context.Context, username string) (*models.Person, error) {
	student, err := s.persons.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

func (s *EnrollmentService) loadParallel(ctx context.Context, id string) (*models.ParallelDetail, error) {
	detail, err := s.parallels.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parallel not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parallel")
	}
	return detail, nil
}

// deliver pushes freshly committed outbox entries. The request's cancellation is dropped so a
// client hanging up does not abort the call; anything not delivered is retried later.
func (s *EnrollmentService) deliver(ctx context.Context, ids []string) {
	if s.outbox == nil || len(ids) == 0 {
		return
	}
	if err := s.outbox.DeliverNow(context.WithoutCancel(ctx), ids...); err != nil {
		s.logger.Warn("enrollment record sync deferred", zap.Strings("outbox_ids", ids), zap.Error(err))
	}
}

// asAppError keeps catalogue errors and wraps everything else as internal.
func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
