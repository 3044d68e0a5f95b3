// Package errs maps handler failures onto HTTP error responses.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/maidige/consultation-admin/pkg/common/validate"
)

// ErrCode classifies an error for the HTTP layer.
type ErrCode int

const (
	Internal ErrCode = iota
	InvalidArgument
	NotFound
	FailedPrecondition
	Unavailable
)

var codeNames = map[ErrCode]string{
	Internal:           "internal",
	InvalidArgument:    "invalid_argument",
	NotFound:           "not_found",
	FailedPrecondition: "failed_precondition",
	Unavailable:        "unavailable",
}

var httpStatus = map[ErrCode]int{
	Internal:           http.StatusInternalServerError,
	InvalidArgument:    http.StatusBadRequest,
	NotFound:           http.StatusNotFound,
	FailedPrecondition: http.StatusConflict,
	Unavailable:        http.StatusServiceUnavailable,
}

func (c ErrCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// HTTPStatus returns the status code written for c.
func (c ErrCode) HTTPStatus() int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is an API error response.
type Error struct {
	Code    ErrCode           `json:"-"`
	Kind    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	err     error
}

// New wraps err with code. Validation failures keep their per-field
// messages. Internal errors hide the underlying message from clients.
func New(code ErrCode, err error) *Error {
	e := &Error{Code: code, Kind: code.String(), err: err}

	var verrs validate.Errors
	switch {
	case errors.As(err, &verrs):
		e.Message = "validation failed"
		e.Fields = verrs.Fields()
	case code == Internal:
		e.Message = http.StatusText(http.StatusInternalServerError)
	case err != nil:
		e.Message = err.Error()
	}
	return e
}

// Newf is New with a formatted message.
func Newf(code ErrCode, format string, args ...any) *Error {
	return New(code, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// Write renders e as JSON.
func (e *Error) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(e)
}

// Check validates a decoded request body.
func Check(v any) error { return validate.Struct(v) }
