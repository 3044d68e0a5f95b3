// Package reporting models asynchronous comprehensive-report generation jobs
// and the polling loops that track them.
package reporting

import (
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned when the remote service reports a status
// outside the known lifecycle.
var ErrUnknownStatus = errors.New("unknown report status")

// ReportStatus represents the lifecycle state of a report-generation job as
// reported by the remote service. Values match the lowercase wire format.
type ReportStatus string

const (
	// ReportStatusPending is assigned when polling starts and before the first
	// successful status query.
	ReportStatusPending ReportStatus = "pending"

	// ReportStatusProcessing indicates the backend is generating the report.
	ReportStatusProcessing ReportStatus = "processing"

	// ReportStatusCompleted indicates the report was generated.
	ReportStatusCompleted ReportStatus = "completed"

	// ReportStatusFailed indicates generation failed on the backend.
	ReportStatusFailed ReportStatus = "failed"
)

func (s ReportStatus) String() string { return string(s) }

// IsTerminal reports whether no further polling is needed for a job in
// this state.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed
}

// ParseReportStatus converts a wire value into a ReportStatus. Matching is
// case-sensitive; anything else wraps ErrUnknownStatus.
func ParseReportStatus(s string) (ReportStatus, error) {
	switch ReportStatus(s) {
	case ReportStatusPending, ReportStatusProcessing, ReportStatusCompleted, ReportStatusFailed:
		return ReportStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}
