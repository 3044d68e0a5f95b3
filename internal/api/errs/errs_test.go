package errs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Write(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "invalid argument keeps message",
			err:        New(InvalidArgument, errors.New("job_id is required")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
			wantMsg:    "job_id is required",
		},
		{
			name:       "not found",
			err:        Newf(NotFound, "no polling for %s", "consultation:1"),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
			wantMsg:    "no polling for consultation:1",
		},
		{
			name:       "internal hides detail",
			err:        New(Internal, errors.New("dial tcp: refused")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
			wantMsg:    "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.err.Write(rec)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestNew_ValidationFields(t *testing.T) {
	var req struct {
		JobID string `json:"job_id" validate:"required"`
	}
	err := New(InvalidArgument, Check(req))

	assert.Equal(t, "validation failed", err.Message)
	assert.Equal(t, map[string]string{"job_id": "job_id is a required field"}, err.Fields)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	assert.ErrorIs(t, New(Internal, cause), cause)
}
