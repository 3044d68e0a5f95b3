package consultapi

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

var (
	// ErrUnauthorized matches any *APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches any *APIError with status 404.
	ErrNotFound = errors.New("not found")
	// ErrNoReport is returned when a consultation has no downloadable report.
	ErrNoReport = errors.New("report file does not exist")
	// ErrEmptyJobID is returned when the backend accepts a generation request
	// without returning a job id.
	ErrEmptyJobID = errors.New("backend returned an empty report id")
)

// APIError is a non-2xx response from the consultation backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string

	// Message is the server-provided message, when present.
	Message string
	// Errors holds per-field validation messages.
	Errors map[string][]string
	// Code is the machine-readable error field some endpoints return.
	Code string
	// FetchAttempts and CanRetry are set by the report fetch endpoints.
	FetchAttempts int
	CanRetry      bool
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	return b.String()
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// FieldErrors flattens Errors into "field: message" lines, sorted by field.
func (e *APIError) FieldErrors() []string {
	if len(e.Errors) == 0 {
		return nil
	}
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	var out []string
	for _, f := range fields {
		for _, m := range e.Errors[f] {
			out = append(out, f+": "+m)
		}
	}
	return out
}

// retryable reports whether a request that failed with e may be retried.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// errorBody is the common shape of the backend's error responses.
type errorBody struct {
	Message       string              `json:"message"`
	Errors        map[string][]string `json:"errors"`
	Error         string              `json:"error"`
	FetchAttempts int                 `json:"fetch_attempts"`
	CanRetry      bool                `json:"can_retry"`
}
