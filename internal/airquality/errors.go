package airquality

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error kinds. A QueryError matches its kind with errors.Is.
var (
	ErrNotFound     = errors.New("no data available")
	ErrInvalidQuery = errors.New("invalid query")
	ErrDateParse    = errors.New("malformed reading date")
	ErrUpstream     = errors.New("upstream failure")
	ErrInternal     = errors.New("internal error")
)

// ErrNoFeatures marks a feature collection without any usable geometry.
var ErrNoFeatures = errors.New("feature collection has no usable features")

// QueryError is the typed failure of a query. Message is safe to show to users.
type QueryError struct {
	Kind    error
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause.
func (e *QueryError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func notFoundError(format string, args ...any) *QueryError {
	return &QueryError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func upstreamError(op string, err error) *QueryError {
	return &QueryError{Kind: ErrUpstream, Message: op + ": " + err.Error(), Err: err}
}

// AsQueryError flattens any error into a QueryError.
func AsQueryError(err error) *QueryError {
	if err == nil {
		return nil
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		return qe
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &QueryError{Kind: ErrUpstream, Message: "request aborted: " + err.Error(), Err: err}
	case errors.Is(err, ErrDateParse):
		return &QueryError{Kind: ErrDateParse, Message: err.Error(), Err: err}
	default:
		return &QueryError{Kind: ErrInternal, Message: err.Error(), Err: err}
	}
}

// formatCoordinate prints the shortest exact form, keeping ".0" on whole numbers.
func formatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
