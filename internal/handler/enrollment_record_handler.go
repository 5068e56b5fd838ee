package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/pkg/response"
)

type enrollmentRecordService interface {
	List(ctx context.Context, username string) ([]models.EnrollmentRecord, error)
	Create(ctx context.Context, username string, req models.EnrollmentRequest) (*models.EnrollmentRecord, error)
	Grade(ctx context.Context, username string, req models.EnrollmentRequest) (*models.EnrollmentRecord, error)
	Delete(ctx context.Context, username, parallelID string) error
}

// EnrollmentRecordHandler serves the enrollment-record API called by the SIS API.
type EnrollmentRecordHandler struct {
	records enrollmentRecordService
}

// NewEnrollmentRecordHandler constructs the handler.
func NewEnrollmentRecordHandler(records enrollmentRecordService) *EnrollmentRecordHandler {
	return &EnrollmentRecordHandler{records: records}
}

// List godoc
// @Summary List a student's enrollment records
// @Tags EnrollmentRecords
// @Produce json
// @Param username path string true "Student username"
// @Success 200 {object} response.Envelope
// @Router /enrollment/{username} [get]
func (h *EnrollmentRecordHandler) List(c *gin.Context) {
	records, err := h.records.List(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Create godoc
// @Summary Record an enrollment
// @Tags EnrollmentRecords
// @Accept json
// @Produce json
// @Param username path string true "Student username"
// @Param payload body models.EnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment/{username} [post]
func (h *EnrollmentRecordHandler) Create(c *gin.Context) {
	var req models.EnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	record, err := h.records.Create(c.Request.Context(), c.Param("username"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Grade godoc
// @Summary Grade an enrollment
// @Tags EnrollmentRecords
// @Accept json
// @Produce json
// @Param username path string true "Student username"
// @Param payload body models.EnrollmentRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollment/grade/{username} [post]
func (h *EnrollmentRecordHandler) Grade(c *gin.Context) {
	var req models.EnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	record, err := h.records.Grade(c.Request.Context(), c.Param("username"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete an enrollment
// @Tags EnrollmentRecords
// @Param username path string true "Student username"
// @Param parallelId path string true "Parallel ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /enrollment/{username}/{parallelId} [delete]
func (h *EnrollmentRecordHandler) Delete(c *gin.Context) {
	if err := h.records.Delete(c.Request.Context(), c.Param("username"), c.Param("parallelId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
