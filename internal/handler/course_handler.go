package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/pkg/response"
)

type courseService interface {
	ListCourses(ctx context.Context, teacherID string) ([]models.Course, error)
	CreateCourse(ctx context.Context, teacherID string, req dto.CreateCourseRequest) (*models.Course, error)
	CreateParallel(ctx context.Context, teacherID string, req dto.ParallelRequest) (*models.ParallelDetail, error)
	UpdateParallel(ctx context.Context, teacherID, parallelID string, req dto.ParallelRequest) (*models.ParallelDetail, error)
	ListParallelStudents(ctx context.Context, teacherID, parallelID string) ([]dto.StudentView, error)
}

// CourseHandler exposes the teacher's course and parallel endpoints.
type CourseHandler struct {
	courses courseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// ListCourses godoc
// @Summary List the caller's courses
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	courses, err := h.courses.ListCourses(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// CreateCourse godoc
// @Summary Create a course owned by the caller
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.courses.CreateCourse(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// CreateParallel godoc
// @Summary Schedule a parallel of one of the caller's courses
// @Tags Parallels
// @Accept json
// @Produce json
// @Param payload body dto.ParallelRequest true "Parallel payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /parallels [post]
func (h *CourseHandler) CreateParallel(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ParallelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	parallel, err := h.courses.CreateParallel(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewParallelView(*parallel))
}

// UpdateParallel godoc
// @Summary Reschedule a parallel
// @Tags Parallels
// @Accept json
// @Produce json
// @Param id path string true "Parallel ID"
// @Param payload body dto.ParallelRequest true "Parallel payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /parallels/{id} [put]
func (h *CourseHandler) UpdateParallel(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ParallelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	parallel, err := h.courses.UpdateParallel(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewParallelView(*parallel), nil)
}

// Students godoc
// @Summary List the students of one of the caller's parallels
// @Tags Parallels
// @Produce json
// @Param id path string true "Parallel ID"
// @Success 200 {object} response.Envelope
// @Router /parallels/{id}/students [get]
func (h *CourseHandler) Students(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	students, err := h.courses.ListParallelStudents(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}
