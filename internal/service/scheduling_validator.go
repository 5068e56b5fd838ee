package service

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

var courseNamePattern = regexp.MustCompile(`^[\p{L}\p{N}\s.,:;!?'()&+/-]+$`)

// DuplicateEnrollmentError is returned when a student already holds another parallel of the
// same course. It matches appErrors.ErrAlreadyEnrolled.
type DuplicateEnrollmentError struct {
	Err  *appErrors.Error
	Held models.Parallel
}

func (e *DuplicateEnrollmentError) Error() string { return e.Err.Error() }

// Unwrap exposes the catalogue error for errors.Is and errors.As.
func (e *DuplicateEnrollmentError) Unwrap() error { return e.Err }

// SchedulingValidator holds the pure scheduling and enrollment rules. It never touches storage.
type SchedulingValidator struct{}

// NewSchedulingValidator constructs the validator.
func NewSchedulingValidator() *SchedulingValidator {
	return &SchedulingValidator{}
}

// ValidateCapacity fails when the parallel has no free seat.
func (v *SchedulingValidator) ValidateCapacity(p models.Parallel) error {
	if p.EnrolledCount >= p.Capacity {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}
	return nil
}

// ValidateTimeSlotExclusivity fails when any parallel other than excludingID already holds the
// classroom in the given semester, day and slot.
func (v *SchedulingValidator) ValidateTimeSlotExclusivity(occupants []models.Parallel, classroomID, semesterID string, day models.DayOfWeek, slot models.TimeSlot, excludingID string) error {
	for _, o := range occupants {
		if o.ID == excludingID {
			continue
		}
		if o.ClassroomID == classroomID && o.SemesterID == semesterID && o.DayOfWeek == day && o.TimeSlot == slot {
			return appErrors.Clone(appErrors.ErrScheduleConflict,
				fmt.Sprintf("classroom already has a parallel on %s %s", day, slot))
		}
	}
	return nil
}

// ValidateEnrollmentWindow allows enrolling only into parallels starting between the active
// semester's start and one year after it.
func (v *SchedulingValidator) ValidateEnrollmentWindow(parallelStart, activeStart time.Time) error {
	if parallelStart.Before(activeStart) || parallelStart.After(activeStart.AddDate(1, 0, 0)) {
		return appErrors.Clone(appErrors.ErrWindowViolation, "")
	}
	return nil
}

// ValidateNoDuplicateEnrollment fails with *DuplicateEnrollmentError when held contains a
// parallel of courseID. held is the set of parallels the student is already in.
func (v *SchedulingValidator) ValidateNoDuplicateEnrollment(held []models.Parallel, courseID, excludingID string) error {
	for _, p := range held {
		if p.CourseID == courseID && p.ID != excludingID {
			return &DuplicateEnrollmentError{
				Err:  appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student already holds a parallel of this course"),
				Held: p,
			}
		}
	}
	return nil
}

// ValidateParallelCapacity requires a positive capacity that fits the classroom.
func (v *SchedulingValidator) ValidateParallelCapacity(capacity, classroomCapacity int) error {
	if capacity <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "capacity must be positive")
	}
	if capacity > classroomCapacity {
		return appErrors.Clone(appErrors.ErrValidation, "capacity exceeds classroom capacity")
	}
	return nil
}

// ValidateParallelSemester rejects parallels scheduled more than a year past the active semester.
func (v *SchedulingValidator) ValidateParallelSemester(parallelStart, activeStart time.Time) error {
	if parallelStart.After(activeStart.AddDate(1, 0, 0)) {
		return appErrors.Clone(appErrors.ErrValidation, "parallels can be created at most two semesters ahead")
	}
	return nil
}

// ValidateCourse checks course naming, credits and language.
func (v *SchedulingValidator) ValidateCourse(name, code string, credits int, language models.CourseLanguage) error {
	if n := utf8.RuneCountInString(name); n < 3 || n > 50 || !courseNamePattern.MatchString(name) {
		return appErrors.Clone(appErrors.ErrValidation, "course name must be 3-50 letters, digits or punctuation")
	}
	if n := utf8.RuneCountInString(code); n < 3 || n > 10 {
		return appErrors.Clone(appErrors.ErrValidation, "course code must be 3-10 characters")
	}
	if credits < 0 || credits > 30 {
		return appErrors.Clone(appErrors.ErrValidation, "credits must be between 0 and 30")
	}
	if language != models.LanguageEnglish && language != models.LanguageCzech {
		return appErrors.Clone(appErrors.ErrValidation, "language must be EN or CZ")
	}
	return nil
}
