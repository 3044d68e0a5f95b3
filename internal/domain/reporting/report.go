package reporting

import (
	"time"

	"github.com/google/uuid"
)

// StatusReport is the decoded result of one remote status query.
type StatusReport struct {
	Status   ReportStatus
	Progress int
	// Data holds the full response payload, including fields beyond status
	// and progress, for completion callbacks.
	Data map[string]any
}

// NewStatusReport builds a StatusReport with progress clamped to [0, 100].
func NewStatusReport(status ReportStatus, progress int, data map[string]any) StatusReport {
	return StatusReport{Status: status, Progress: ClampProgress(progress), Data: data}
}

// ClampProgress bounds a reported percentage to [0, 100].
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// PollingEntry is the tracking record for one in-flight job, keyed by the
// caller-supplied entity key.
type PollingEntry struct {
	EntityKey string       `json:"entity_key"`
	JobID     string       `json:"job_id"`
	Progress  int          `json:"progress"`
	Status    ReportStatus `json:"status"`
	StartedAt time.Time    `json:"started_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewPollingEntry returns an entry in its initial pending state.
func NewPollingEntry(entityKey, jobID string, now time.Time) PollingEntry {
	return PollingEntry{
		EntityKey: entityKey,
		JobID:     jobID,
		Progress:  0,
		Status:    ReportStatusPending,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Apply overwrites progress and status with a successful query result.
func (e *PollingEntry) Apply(r StatusReport, now time.Time) {
	e.Progress = ClampProgress(r.Progress)
	e.Status = r.Status
	e.UpdatedAt = now
}

// ReportRun records a polling loop that reached a terminal state.
type ReportRun struct {
	ID         uuid.UUID      `json:"id"`
	EntityKey  string         `json:"entity_key"`
	JobID      string         `json:"job_id"`
	Status     ReportStatus   `json:"status"`
	Progress   int            `json:"progress"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewReportRun captures the final state of an entry.
func NewReportRun(e PollingEntry, payload map[string]any, finishedAt time.Time) ReportRun {
	return ReportRun{
		ID:         uuid.New(),
		EntityKey:  e.EntityKey,
		JobID:      e.JobID,
		Status:     e.Status,
		Progress:   e.Progress,
		StartedAt:  e.StartedAt,
		FinishedAt: finishedAt,
		Payload:    payload,
	}
}

// Duration is how long the loop ran before reaching its terminal state.
func (r ReportRun) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
