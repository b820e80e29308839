package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosensor/ecosensor/internal/api/models"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeNotFound,
		"Not found",
		http.StatusNotFound,
		"req_test123",
	)

	assert.Equal(t, models.ProblemTypeNotFound, p.Type)
	assert.Equal(t, "Not found", p.Title)
	assert.Equal(t, http.StatusNotFound, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
}

func TestProblem_WithDetailAndInstance(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, "req_1").
		WithDetail("boom").
		WithInstance("/v1/air-quality")

	assert.Equal(t, "boom", p.Detail)
	assert.Equal(t, "/v1/air-quality", p.Instance)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewNotFound("req_test123", "no route for /v1/nope")
	p.Instance = "/v1/nope"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeNotFound, result.Type)
	assert.Equal(t, "Not found", result.Title)
	assert.Equal(t, http.StatusNotFound, result.Status)
	assert.Equal(t, "no route for /v1/nope", result.Detail)
	assert.Equal(t, "/v1/nope", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("X-Request-Id"))
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		title   string
		status  int
	}{
		{"not found", models.NewNotFound("r", "d"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"method", models.NewMethodNotAllowed("r", "d"), models.ProblemTypeMethod, "Method not allowed", http.StatusMethodNotAllowed},
		{"tls", models.NewTLSRequired("r"), models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden},
		{"rate limit", models.NewTooManyRequests("r", "d"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError("r", "d"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "r", tt.problem.TraceID)
			assert.NotEmpty(t, tt.problem.Detail)
		})
	}
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, loc)

	data, err := json.Marshal(models.NewTimestamp(&ts))
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-05-01T10:00:00Z"`, string(data))

	assert.Nil(t, models.NewTimestamp(nil))
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var ts models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T10:00:00Z"`), &ts))
	assert.True(t, ts.Time().Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
