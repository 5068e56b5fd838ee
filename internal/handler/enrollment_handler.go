package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, username, parallelID string) error
	Drop(ctx context.Context, username, parallelID string) error
	ListNextSemesterParallels(ctx context.Context) ([]dto.ParallelView, error)
	ListCurrentSemesterParallels(ctx context.Context) ([]dto.ParallelView, error)
	ListStudentParallels(ctx context.Context, username string) ([]dto.ParallelView, error)
	EnrollmentReport(ctx context.Context, username string) ([]models.EnrollmentRecord, error)
}

// EnrollmentHandler exposes the student-facing enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Enroll the caller in a parallel
// @Description Switches sections when the caller already holds another parallel of the same course.
// @Tags Enrollment
// @Produce json
// @Param parallelId path string true "Parallel ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enroll/{parallelId} [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.enrollments.Enroll(c.Request.Context(), claims.Username, c.Param("parallelId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Drop godoc
// @Summary Drop the caller from a parallel
// @Tags Enrollment
// @Produce json
// @Param parallelId path string true "Parallel ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /enroll/{parallelId} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.enrollments.Drop(c.Request.Context(), claims.Username, c.Param("parallelId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// NextSemester godoc
// @Summary List parallels open for enrollment
// @Tags Parallels
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /parallels/next-semester [get]
func (h *EnrollmentHandler) NextSemester(c *gin.Context) {
	views, err := h.enrollments.ListNextSemesterParallels(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// CurrentSemester godoc
// @Summary List parallels of the active semester
// @Tags Parallels
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /parallels/current-semester [get]
func (h *EnrollmentHandler) CurrentSemester(c *gin.Context) {
	views, err := h.enrollments.ListCurrentSemesterParallels(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// MyParallels godoc
// @Summary List the caller's parallels
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/me/parallels [get]
func (h *EnrollmentHandler) MyParallels(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	views, err := h.enrollments.ListStudentParallels(c.Request.Context(), claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// MyEnrollments godoc
// @Summary List the caller's enrollment records with grades
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /students/me/enrollments [get]
func (h *EnrollmentHandler) MyEnrollments(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	records, err := h.enrollments.EnrollmentReport(c.Request.Context(), claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
