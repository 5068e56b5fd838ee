package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
)

type recordServiceMock struct {
	created  models.EnrollmentRequest
	graded   models.EnrollmentRequest
	deleted  []string
	gradeErr error
	missing  bool
}

func (m *recordServiceMock) List(ctx context.Context, username string) ([]models.EnrollmentRecord, error) {
	return []models.EnrollmentRecord{{StudentUsername: username, Status: models.StatusInProgress}}, nil
}

func (m *recordServiceMock) Create(ctx context.Context, username string, req models.EnrollmentRequest) (*models.EnrollmentRecord, error) {
	m.created = req
	return &models.EnrollmentRecord{StudentUsername: username, ParallelID: req.ParallelID, Status: models.StatusInProgress}, nil
}

func (m *recordServiceMock) Grade(ctx context.Context, username string, req models.EnrollmentRequest) (*models.EnrollmentRecord, error) {
	m.graded = req
	if m.gradeErr != nil {
		return nil, m.gradeErr
	}
	return &models.EnrollmentRecord{StudentUsername: username, Status: models.StatusPassed}, nil
}

func (m *recordServiceMock) Delete(ctx context.Context, username, parallelID string) error {
	if m.missing {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	m.deleted = append(m.deleted, username+"/"+parallelID)
	return nil
}

func newRecordRouter(svc *recordServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterEnrollmentRecordRoutes(r, NewEnrollmentRecordHandler(svc))
	return r
}

func serveJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEnrollmentRecordRoutes(t *testing.T) {
	svc := &recordServiceMock{}
	r := newRecordRouter(svc)

	w := serveJSON(r, http.MethodPost, "/enrollment/alice", models.EnrollmentRequest{Course: "PJV", TeacherName: "Jan Novak", ParallelID: "p-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Jan Novak", svc.created.TeacherName)

	w = serveJSON(r, http.MethodPost, "/enrollment/grade/alice", models.EnrollmentRequest{Grade: "A", ParallelID: "p-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", svc.graded.Grade)

	w = serveJSON(r, http.MethodGet, "/enrollment/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data []models.EnrollmentRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "alice", env.Data[0].StudentUsername)

	w = serveJSON(r, http.MethodDelete, "/enrollment/alice/p-1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"alice/p-1"}, svc.deleted)
}

func TestEnrollmentRecordErrors(t *testing.T) {
	svc := &recordServiceMock{gradeErr: appErrors.Clone(appErrors.ErrInvalidGrade, ""), missing: true}
	r := newRecordRouter(svc)

	w := serveJSON(r, http.MethodPost, "/enrollment/grade/alice", models.EnrollmentRequest{Grade: "Q", ParallelID: "p-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serveJSON(r, http.MethodDelete, "/enrollment/alice/p-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
