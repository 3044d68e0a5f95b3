package reporting

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by RunRecorder lookups with no match.
var ErrRunNotFound = errors.New("report run not found")

// StatusQuerier fetches the current state of a remote report job.
type StatusQuerier interface {
	ReportStatus(ctx context.Context, jobID string) (StatusReport, error)
}

// ReportRequester submits a comprehensive report generation request for a
// consultation and returns the remote job id.
type ReportRequester interface {
	GenerateComprehensiveReport(ctx context.Context, consultationID string) (string, error)
}

// Notifier delivers user-facing outcome messages.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// RunRecorder persists finished polling loops.
type RunRecorder interface {
	RecordRun(ctx context.Context, run ReportRun) error
	// ListRuns returns the most recent runs for an entity key, newest first.
	ListRuns(ctx context.Context, entityKey string, limit int) ([]ReportRun, error)
	// GetRun returns a single run or ErrRunNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (ReportRun, error)
}
