package models

import "time"

// GradeEvent announces a grading action. EventID lets consumers drop redeliveries.
type GradeEvent struct {
	EventID         string    `json:"eventId"`
	StudentUsername string    `json:"studentUsername"`
	TeacherFullName string    `json:"teacherFullName"`
	Course          string    `json:"course"`
	Grade           Grade     `json:"grade"`
	OccurredAt      time.Time `json:"occurredAt"`
}
