package reporting

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
)

const namespace = "report_polling"

// PollingMetrics defines the instruments recorded by the PollingManager.
type PollingMetrics interface {
	IncPollsStarted(ctx context.Context)
	AddActivePolls(ctx context.Context, delta int64)
	IncStatusQueries(ctx context.Context)
	IncStatusQueryErrors(ctx context.Context)
	IncPollsFinished(ctx context.Context, status domain.ReportStatus)
	ObservePollDuration(ctx context.Context, status domain.ReportStatus, d time.Duration)
}

type pollingMetrics struct {
	pollsStarted      metric.Int64Counter
	activePolls       metric.Int64UpDownCounter
	statusQueries     metric.Int64Counter
	statusQueryErrors metric.Int64Counter
	pollsFinished     metric.Int64Counter
	pollDuration      metric.Float64Histogram
}

// NewPollingMetrics registers the polling instruments with the meter provider.
func NewPollingMetrics(mp metric.MeterProvider) (*pollingMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(pollingMetrics)
	var err error

	if m.pollsStarted, err = meter.Int64Counter(
		"polls_started_total",
		metric.WithDescription("Total number of report polling loops started"),
	); err != nil {
		return nil, err
	}

	if m.activePolls, err = meter.Int64UpDownCounter(
		"active_polls",
		metric.WithDescription("Number of report polling loops currently running"),
	); err != nil {
		return nil, err
	}

	if m.statusQueries, err = meter.Int64Counter(
		"status_queries_total",
		metric.WithDescription("Total number of remote report status queries"),
	); err != nil {
		return nil, err
	}

	if m.statusQueryErrors, err = meter.Int64Counter(
		"status_query_errors_total",
		metric.WithDescription("Total number of failed report status queries"),
	); err != nil {
		return nil, err
	}

	if m.pollsFinished, err = meter.Int64Counter(
		"polls_finished_total",
		metric.WithDescription("Total number of polling loops that reached a terminal status"),
	); err != nil {
		return nil, err
	}

	if m.pollDuration, err = meter.Float64Histogram(
		"poll_duration_seconds",
		metric.WithDescription("Time from polling start to terminal status"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *pollingMetrics) IncPollsStarted(ctx context.Context) { m.pollsStarted.Add(ctx, 1) }

func (m *pollingMetrics) AddActivePolls(ctx context.Context, delta int64) {
	m.activePolls.Add(ctx, delta)
}

func (m *pollingMetrics) IncStatusQueries(ctx context.Context) { m.statusQueries.Add(ctx, 1) }

func (m *pollingMetrics) IncStatusQueryErrors(ctx context.Context) { m.statusQueryErrors.Add(ctx, 1) }

func (m *pollingMetrics) IncPollsFinished(ctx context.Context, status domain.ReportStatus) {
	m.pollsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
}

func (m *pollingMetrics) ObservePollDuration(ctx context.Context, status domain.ReportStatus, d time.Duration) {
	m.pollDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status.String())))
}

type noopMetrics struct{}

func (noopMetrics) IncPollsStarted(context.Context)                                          {}
func (noopMetrics) AddActivePolls(context.Context, int64)                                    {}
func (noopMetrics) IncStatusQueries(context.Context)                                         {}
func (noopMetrics) IncStatusQueryErrors(context.Context)                                     {}
func (noopMetrics) IncPollsFinished(context.Context, domain.ReportStatus)                    {}
func (noopMetrics) ObservePollDuration(context.Context, domain.ReportStatus, time.Duration) {}
