package dto

import "github.com/noah-isme/sis-enrollment/internal/models"

// CreateSemesterRequest defines the payload for opening a semester.
type CreateSemesterRequest struct {
	Year int                 `json:"year" validate:"required,min=2000,max=2100"`
	Type models.SemesterType `json:"type" validate:"required,oneof=SPRING FALL"`
}

// SemesterView is a semester with its phase relative to the active one.
type SemesterView struct {
	models.Semester
	Phase models.SemesterPhase `json:"phase"`
}
