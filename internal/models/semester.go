package models

import (
	"fmt"
	"time"
)

// SemesterType is the half of the academic year a semester covers.
type SemesterType string

const (
	SemesterSpring SemesterType = "SPRING"
	SemesterFall   SemesterType = "FALL"
)

// Valid reports whether t is a known semester type.
func (t SemesterType) Valid() bool {
	return t == SemesterSpring || t == SemesterFall
}

// Window returns the calendar start and end of a semester of this type in year.
// SPRING runs Jan 1 – Jun 30, FALL runs Jul 1 – Dec 31.
func (t SemesterType) Window(year int) (time.Time, time.Time) {
	if t == SemesterFall {
		return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC), time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)
}

// SemesterCode renders the unique semester code, e.g. FALL2025.
func SemesterCode(t SemesterType, year int) string {
	return fmt.Sprintf("%s%d", t, year)
}

// SemesterPhase is derived from the active semester and never stored.
type SemesterPhase string

const (
	PhaseFuture SemesterPhase = "FUTURE"
	PhaseActive SemesterPhase = "ACTIVE"
	PhasePast   SemesterPhase = "PAST"
)

// Semester is an academic half-year. At most one semester is active at a time.
type Semester struct {
	ID        string       `db:"id" json:"id"`
	Code      string       `db:"code" json:"code"`
	Type      SemesterType `db:"semester_type" json:"semester_type"`
	StartDate time.Time    `db:"start_date" json:"start_date"`
	EndDate   time.Time    `db:"end_date" json:"end_date"`
	IsActive  bool         `db:"is_active" json:"is_active"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// NewSemester builds an inactive semester of type t in year.
func NewSemester(year int, t SemesterType) Semester {
	start, end := t.Window(year)
	return Semester{
		Code:      SemesterCode(t, year),
		Type:      t,
		StartDate: start,
		EndDate:   end,
	}
}

// Next returns the code of the semester that follows s.
func (s Semester) Next() string {
	year := s.StartDate.Year()
	if s.Type == SemesterSpring {
		return SemesterCode(SemesterFall, year)
	}
	return SemesterCode(SemesterSpring, year+1)
}
