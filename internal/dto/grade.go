package dto

// AssignGradeRequest is the teacher's grading payload. Course and TeacherName are accepted
// for compatibility; both are taken from the parallel and the caller instead.
type AssignGradeRequest struct {
	Course      string `json:"course"`
	TeacherName string `json:"teacherName"`
	Grade       string `json:"grade" validate:"required"`
	ParallelID  string `json:"parallelId" validate:"required"`
}
