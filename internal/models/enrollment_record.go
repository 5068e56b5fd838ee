package models

import "time"

// Grade is a letter grade; F fails, every other grade passes.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
	GradeF Grade = "F"
)

// ParseGrade validates raw against the grade scale.
func ParseGrade(raw string) (Grade, bool) {
	switch g := Grade(raw); g {
	case GradeA, GradeB, GradeC, GradeD, GradeE, GradeF:
		return g, true
	}
	return "", false
}

// EnrollmentStatus is derived from the grade, never set directly.
type EnrollmentStatus string

const (
	StatusInProgress EnrollmentStatus = "IN_PROGRESS"
	StatusPassed     EnrollmentStatus = "PASSED"
	StatusFailed     EnrollmentStatus = "FAILED"
)

// StatusForGrade maps an optional grade onto its status.
func StatusForGrade(g *Grade) EnrollmentStatus {
	switch {
	case g == nil || *g == "":
		return StatusInProgress
	case *g == GradeF:
		return StatusFailed
	default:
		return StatusPassed
	}
}

// EnrollmentRecord is the per-student, per-parallel record held by the enrollment service.
type EnrollmentRecord struct {
	ID              string           `db:"id" json:"id"`
	StudentUsername string           `db:"student_username" json:"student_username"`
	Course          string           `db:"course" json:"course"`
	TeacherName     string           `db:"teacher_name" json:"teacher_name"`
	Grade           *Grade           `db:"grade" json:"grade,omitempty"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	ParallelID      string           `db:"parallel_id" json:"parallel_id"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// SetGrade assigns g and re-derives the status.
func (r *EnrollmentRecord) SetGrade(g *Grade) {
	r.Grade = g
	r.Status = StatusForGrade(g)
}

// EnrollmentRequest is the wire body shared by the SIS API and the enrollment service.
type EnrollmentRequest struct {
	Course      string `json:"course"`
	TeacherName string `json:"teacherName"`
	Grade       string `json:"grade,omitempty"`
	ParallelID  string `json:"parallelId"`
}
