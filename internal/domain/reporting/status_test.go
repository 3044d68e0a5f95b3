package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReportStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ReportStatus
		wantErr bool
	}{
		{name: "pending", input: "pending", want: ReportStatusPending},
		{name: "processing", input: "processing", want: ReportStatusProcessing},
		{name: "completed", input: "completed", want: ReportStatusCompleted},
		{name: "failed", input: "failed", want: ReportStatusFailed},
		{name: "uppercase is rejected", input: "COMPLETED", wantErr: true},
		{name: "unknown value", input: "generating", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReportStatus(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportStatus_IsTerminal(t *testing.T) {
	assert.False(t, ReportStatusPending.IsTerminal())
	assert.False(t, ReportStatusProcessing.IsTerminal())
	assert.True(t, ReportStatusCompleted.IsTerminal())
	assert.True(t, ReportStatusFailed.IsTerminal())
}

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 0, ClampProgress(-5))
	assert.Equal(t, 40, ClampProgress(40))
	assert.Equal(t, 100, ClampProgress(250))
}

func TestPollingEntry_Apply(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewPollingEntry("visit-1", "r-1", start)
	assert.Equal(t, ReportStatusPending, e.Status)
	assert.Zero(t, e.Progress)

	later := start.Add(3 * time.Second)
	e.Apply(StatusReport{Status: ReportStatusProcessing, Progress: 140}, later)
	assert.Equal(t, ReportStatusProcessing, e.Status)
	assert.Equal(t, 100, e.Progress)
	assert.Equal(t, later, e.UpdatedAt)
	assert.Equal(t, start, e.StartedAt)
}

func TestNewTerminalNotification(t *testing.T) {
	n, ok := NewTerminalNotification("visit-1", "r-1", ReportStatusCompleted)
	require.True(t, ok)
	assert.Equal(t, NotificationSuccess, n.Level)

	n, ok = NewTerminalNotification("visit-1", "r-1", ReportStatusFailed)
	require.True(t, ok)
	assert.Equal(t, NotificationError, n.Level)

	_, ok = NewTerminalNotification("visit-1", "r-1", ReportStatusProcessing)
	assert.False(t, ok)
}

func TestNewReportRun(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewPollingEntry("visit-1", "r-1", start)
	e.Apply(StatusReport{Status: ReportStatusCompleted, Progress: 100}, start.Add(9*time.Second))

	run := NewReportRun(e, map[string]any{"report_url": "https://x/r.pdf"}, start.Add(9*time.Second))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, ReportStatusCompleted, run.Status)
	assert.Equal(t, 9*time.Second, run.Duration())
}
