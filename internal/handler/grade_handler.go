package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment/internal/dto"
	"github.com/noah-isme/sis-enrollment/pkg/response"
)

type gradeService interface {
	AssignGrade(ctx context.Context, teacherID, studentUsername string, req dto.AssignGradeRequest) error
}

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Assign godoc
// @Summary Grade a student of one of the caller's parallels
// @Tags Grades
// @Accept json
// @Produce json
// @Param studentUsername path string true "Student username"
// @Param payload body dto.AssignGradeRequest true "Grade payload"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /grade/{studentUsername} [post]
func (h *GradeHandler) Assign(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.AssignGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	if err := h.grades.AssignGrade(c.Request.Context(), claims.UserID, c.Param("studentUsername"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
