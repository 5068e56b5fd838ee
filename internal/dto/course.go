package dto

import "github.com/noah-isme/sis-enrollment/internal/models"

// CreateCourseRequest defines the payload for creating a course owned by the caller.
type CreateCourseRequest struct {
	Name     string                `json:"name" validate:"required"`
	Code     string                `json:"code" validate:"required"`
	Credits  int                   `json:"credits" validate:"min=0"`
	Language models.CourseLanguage `json:"language" validate:"required"`
}

// ParallelRequest defines the payload for creating or rescheduling a parallel.
type ParallelRequest struct {
	CourseID    string           `json:"courseId" validate:"required"`
	SemesterID  string           `json:"semesterId" validate:"required"`
	ClassroomID string           `json:"classroomId" validate:"required"`
	Capacity    int              `json:"capacity" validate:"required,gt=0"`
	TimeSlot    models.TimeSlot  `json:"timeSlot" validate:"required,oneof=SLOT1 SLOT2 SLOT3 SLOT4 SLOT5 SLOT6 SLOT7"`
	DayOfWeek   models.DayOfWeek `json:"dayOfWeek" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
}

// ParallelView is the listing shape of a parallel.
type ParallelView struct {
	ID            string           `json:"id"`
	CourseCode    string           `json:"courseCode"`
	CourseName    string           `json:"courseName"`
	TeacherName   string           `json:"teacherName"`
	ClassroomCode string           `json:"classroomCode"`
	SemesterCode  string           `json:"semesterCode"`
	DayOfWeek     models.DayOfWeek `json:"dayOfWeek"`
	TimeSlot      models.TimeSlot  `json:"timeSlot"`
	Time          string           `json:"time"`
	Capacity      int              `json:"capacity"`
	Enrolled      int              `json:"enrolled"`
}

// NewParallelView flattens a parallel detail for API responses.
func NewParallelView(d models.ParallelDetail) ParallelView {
	return ParallelView{
		ID:            d.ID,
		CourseCode:    d.CourseCode,
		CourseName:    d.CourseName,
		TeacherName:   d.TeacherFullName(),
		ClassroomCode: d.ClassroomCode,
		SemesterCode:  d.SemesterCode,
		DayOfWeek:     d.DayOfWeek,
		TimeSlot:      d.TimeSlot,
		Time:          d.TimeSlot.String(),
		Capacity:      d.Capacity,
		Enrolled:      d.EnrolledCount,
	}
}

// NewParallelViews maps a list of details.
func NewParallelViews(details []models.ParallelDetail) []ParallelView {
	views := make([]ParallelView, 0, len(details))
	for _, d := range details {
		views = append(views, NewParallelView(d))
	}
	return views
}

// StudentView is a parallel member as shown to its teacher.
type StudentView struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}
