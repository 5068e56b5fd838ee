// Package client talks to the enrollment-record service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/pkg/middleware/requestid"
)

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// EnrollmentClient is an HTTP client for the enrollment-record API. Create and Delete are
// idempotent on the server side, so callers may retry them freely.
type EnrollmentClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewEnrollmentClient builds a client. A zero timeout falls back to five seconds.
func NewEnrollmentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *EnrollmentClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// List returns every record of a student.
func (c *EnrollmentClient) List(ctx context.Context, username string) ([]models.EnrollmentRecord, error) {
	var records []models.EnrollmentRecord
	if err := c.do(ctx, http.MethodGet, "/enrollment/"+url.PathEscape(username), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create registers the enrollment of a student in a parallel.
func (c *EnrollmentClient) Create(ctx context.Context, username string, req models.EnrollmentRequest) error {
	return c.do(ctx, http.MethodPost, "/enrollment/"+url.PathEscape(username), req, nil)
}

// Grade sets the grade on an existing record.
func (c *EnrollmentClient) Grade(ctx context.Context, username string, req models.EnrollmentRequest) error {
	return c.do(ctx, http.MethodPost, "/enrollment/grade/"+url.PathEscape(username), req, nil)
}

// Delete removes the record of a student in a parallel. A record that is already gone
// counts as deleted.
func (c *EnrollmentClient) Delete(ctx context.Context, username, parallelID string) error {
	err := c.do(ctx, http.MethodDelete, "/enrollment/"+url.PathEscape(username)+"/"+url.PathEscape(parallelID), nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *EnrollmentClient) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("enrollment service call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}

	if dest == nil {
		return nil
	}
	envelope := struct {
		Data interface{} `json:"data"`
	}{Data: dest}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
