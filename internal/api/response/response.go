// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/api/middleware"
	"github.com/ecosensor/ecosensor/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// NotFound writes a 404 Not Found problem.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), "no route for "+r.URL.Path))
}

// MethodNotAllowed writes a 405 Method Not Allowed problem.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method+" is not supported on "+r.URL.Path))
}

// InternalError writes a 500 Internal Server Error problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// QueryFailed writes a failed air quality query as {"error": message}.
func QueryFailed(w http.ResponseWriter, r *http.Request, qe *airquality.QueryError) {
	JSON(w, r, StatusFor(qe), models.ErrorResponse{Error: qe.Message})
}

// StatusFor maps a query error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, airquality.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, airquality.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, airquality.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
