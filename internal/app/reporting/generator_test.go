package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

type mockReportRequester struct {
	generateFunc func(ctx context.Context, consultationID string) (string, error)
}

func (m *mockReportRequester) GenerateComprehensiveReport(ctx context.Context, consultationID string) (string, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, consultationID)
	}
	return "job-" + consultationID, nil
}

func newTestGenerator(t *testing.T, r domain.ReportRequester, q domain.StatusQuerier) (*Generator, *PollingManager, *fakeClock) {
	t.Helper()

	m, clk := newTestManager(t, q, nil)
	g := NewGenerator(r, m, noop.NewTracerProvider().Tracer("test"), logger.Noop())
	return g, m, clk
}

func TestGenerator_Generate(t *testing.T) {
	q := new(mockStatusQuerier)
	g, m, _ := newTestGenerator(t, new(mockReportRequester), q)

	jobID, err := g.Generate(context.Background(), "42", nil)
	require.NoError(t, err)
	assert.Equal(t, "job-42", jobID)

	entry, ok := m.PollingStatus(EntityKeyForConsultation("42"))
	require.True(t, ok)
	assert.Equal(t, "job-42", entry.JobID)
}

func TestGenerator_Generate_Errors(t *testing.T) {
	requestErr := errors.New("http 500")

	tests := []struct {
		name           string
		consultationID string
		requester      *mockReportRequester
		wantErr        error
	}{
		{
			name:           "missing consultation id",
			consultationID: "",
			requester:      new(mockReportRequester),
			wantErr:        ErrInvalidConsultationID,
		},
		{
			name:           "request fails",
			consultationID: "7",
			requester: &mockReportRequester{
				generateFunc: func(context.Context, string) (string, error) { return "", requestErr },
			},
			wantErr: requestErr,
		},
		{
			name:           "empty job id",
			consultationID: "7",
			requester: &mockReportRequester{
				generateFunc: func(context.Context, string) (string, error) { return "", nil },
			},
			wantErr: ErrInvalidJobID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, m, _ := newTestGenerator(t, tt.requester, new(mockStatusQuerier))

			_, err := g.Generate(context.Background(), tt.consultationID, nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, m.Snapshot())
		})
	}
}

func TestGenerator_GenerateAndWait(t *testing.T) {
	q := &mockStatusQuerier{
		reportStatusFunc: func(context.Context, string) (domain.StatusReport, error) {
			return domain.NewStatusReport(domain.ReportStatusCompleted, 100, map[string]any{"report_id": "r-1"}), nil
		},
	}
	g, m, clk := newTestGenerator(t, new(mockReportRequester), q)

	type result struct {
		report domain.StatusReport
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		r, err := g.GenerateAndWait(context.Background(), "42")
		resCh <- result{r, err}
	}()

	require.Eventually(t, func() bool { return m.IsPolling(EntityKeyForConsultation("42")) }, waitFor, tickEvery)
	clk.Advance(testInterval)

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, domain.ReportStatusCompleted, res.report.Status)
		assert.Equal(t, "r-1", res.report.Data["report_id"])
	case <-time.After(waitFor):
		t.Fatal("GenerateAndWait did not return")
	}
	assert.False(t, m.IsPolling(EntityKeyForConsultation("42")))
}

func TestGenerator_GenerateAndWait_ContextCancelled(t *testing.T) {
	g, m, _ := newTestGenerator(t, new(mockReportRequester), new(mockStatusQuerier))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := g.GenerateAndWait(ctx, "42")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return m.IsPolling(EntityKeyForConsultation("42")) }, waitFor, tickEvery)
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, m.IsPolling(EntityKeyForConsultation("42")))
}

func TestGenerator_Generate_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	m, _ := newTestManager(t, new(mockStatusQuerier), nil)
	g := NewGenerator(new(mockReportRequester), m, tp.Tracer("test"), logger.Noop())

	_, err := g.Generate(context.Background(), "42", nil)
	require.NoError(t, err)

	var attrs []attribute.KeyValue
	for _, s := range sr.Ended() {
		if s.Name() == "generator.reporting.generate" {
			attrs = s.Attributes()
		}
	}
	require.NotEmpty(t, attrs, "generate span not recorded")
	assert.Contains(t, attrs, attribute.String("consultation_id", "42"))
	assert.Contains(t, attrs, attribute.String("job_id", "job-42"))
}

func TestGenerator_Generate_ManagerClosed(t *testing.T) {
	g, m, _ := newTestGenerator(t, new(mockReportRequester), new(mockStatusQuerier))
	m.Close()

	_, err := g.Generate(context.Background(), "42", nil)
	assert.ErrorIs(t, err, ErrClosed)
}
