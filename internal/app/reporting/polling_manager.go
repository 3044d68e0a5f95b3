// Package reporting tracks asynchronous comprehensive-report generation jobs
// by polling the remote status endpoint until each job reaches a terminal
// state.
package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

// DefaultPollInterval is the fixed delay between status queries for a job.
const DefaultPollInterval = 3 * time.Second

var (
	// ErrInvalidJobID is returned when polling is requested without a job id.
	ErrInvalidJobID = errors.New("job id is required")
	// ErrInvalidEntityKey is returned when polling is requested without an entity key.
	ErrInvalidEntityKey = errors.New("entity key is required")
	// ErrClosed is returned when polling is requested after Close.
	ErrClosed = errors.New("polling manager is closed")
)

// CompletionFunc is invoked exactly once when a polled job reaches a terminal
// status. It is never invoked for loops that are stopped or replaced.
type CompletionFunc func(status domain.ReportStatus, report domain.StatusReport)

// pollLoop is the bookkeeping for one active polling loop. Only state is
// mutable and it is guarded by PollingManager.mu.
type pollLoop struct {
	entityKey  string
	jobID      string
	onComplete CompletionFunc
	cancel     context.CancelFunc

	state domain.PollingEntry
}

// PollingManager runs one independent status-polling loop per entity key.
// Starting a loop for a key that is already tracked cancels the previous loop
// first, so at most one loop ever runs per key.
//
// Each loop is owned by a single goroutine, which serializes ticks for a key:
// a tick that fires while the previous status query is still in flight is
// dropped rather than queued. Responses that arrive after their loop was
// stopped or replaced are discarded.
type PollingManager struct {
	querier  domain.StatusQuerier
	notifier domain.Notifier
	recorder domain.RunRecorder

	interval time.Duration
	clock    clock

	mu     sync.RWMutex
	loops  map[string]*pollLoop
	closed bool

	wg sync.WaitGroup

	metrics PollingMetrics
	tracer  trace.Tracer
	logger  *logger.Logger
}

// Option configures optional PollingManager behavior.
type Option func(*PollingManager)

// WithInterval overrides DefaultPollInterval.
func WithInterval(d time.Duration) Option {
	return func(m *PollingManager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithRunRecorder persists every loop that reaches a terminal status.
func WithRunRecorder(r domain.RunRecorder) Option {
	return func(m *PollingManager) { m.recorder = r }
}

// WithMetrics records polling instruments.
func WithMetrics(pm PollingMetrics) Option {
	return func(m *PollingManager) {
		if pm != nil {
			m.metrics = pm
		}
	}
}

// NewPollingManager creates a PollingManager that queries job status through
// querier and reports terminal outcomes through notifier. A nil notifier
// disables notifications.
func NewPollingManager(
	querier domain.StatusQuerier,
	notifier domain.Notifier,
	tracer trace.Tracer,
	logger *logger.Logger,
	opts ...Option,
) *PollingManager {
	m := &PollingManager{
		querier:  querier,
		notifier: notifier,
		interval: DefaultPollInterval,
		clock:    realClock{},
		loops:    make(map[string]*pollLoop),
		metrics:  noopMetrics{},
		tracer:   tracer,
		logger:   logger.With("component", "report_polling_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartPolling begins polling jobID on behalf of entityKey. Any loop already
// tracked for entityKey is cancelled before the new one is installed. The
// loop is detached from ctx cancellation but keeps its trace context.
func (m *PollingManager) StartPolling(ctx context.Context, jobID, entityKey string, onComplete CompletionFunc) error {
	if jobID == "" {
		return ErrInvalidJobID
	}
	if entityKey == "" {
		return ErrInvalidEntityKey
	}

	ctx, span := m.tracer.Start(ctx, "polling_manager.reporting.start_polling",
		trace.WithAttributes(
			attribute.String("entity_key", entityKey),
			attribute.String("job_id", jobID),
			attribute.String("interval", m.interval.String()),
		))
	defer span.End()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	loop := &pollLoop{
		entityKey:  entityKey,
		jobID:      jobID,
		onComplete: onComplete,
		cancel:     cancel,
		state:      domain.NewPollingEntry(entityKey, jobID, m.clock.Now()),
	}
	// The ticker is created before the loop is published so the first
	// interval is measured from this call.
	t := m.clock.NewTicker(m.interval)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		t.Stop()
		cancel()
		span.SetStatus(codes.Error, "manager closed")
		return ErrClosed
	}
	prev, replaced := m.loops[entityKey]
	m.loops[entityKey] = loop
	// Registered under mu so Close never waits on a counter that can still grow.
	m.wg.Add(1)
	m.mu.Unlock()

	if replaced {
		prev.cancel()
		span.AddEvent("previous_loop_cancelled", trace.WithAttributes(
			attribute.String("previous_job_id", prev.jobID),
		))
		m.logger.Debug(ctx, "Replaced existing polling loop",
			"entity_key", entityKey,
			"previous_job_id", prev.jobID,
			"job_id", jobID,
		)
	} else {
		m.metrics.AddActivePolls(ctx, 1)
	}
	m.metrics.IncPollsStarted(ctx)

	go m.run(loopCtx, loop, t)

	m.logger.Info(ctx, "Report polling started", "entity_key", entityKey, "job_id", jobID)
	span.SetStatus(codes.Ok, "polling started")
	return nil
}

// run drives a single loop until it is cancelled or its job terminates.
func (m *PollingManager) run(ctx context.Context, loop *pollLoop, t ticker) {
	defer m.wg.Done()
	defer t.Stop()
	defer loop.cancel()

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.C():
			// Cancellation may race with a pending tick; a cancelled loop
			// must never issue another query.
			if ctx.Err() != nil {
				return
			}
			if done := m.tick(ctx, loop); done {
				return
			}
		}
	}
}

// tick performs one status query and applies its result. It returns true
// when the loop should exit.
func (m *PollingManager) tick(ctx context.Context, loop *pollLoop) bool {
	ctx, span := m.tracer.Start(ctx, "polling_manager.reporting.tick",
		trace.WithAttributes(
			attribute.String("entity_key", loop.entityKey),
			attribute.String("job_id", loop.jobID),
		))
	defer span.End()

	m.metrics.IncStatusQueries(ctx)
	report, err := m.querier.ReportStatus(ctx, loop.jobID)
	if err == nil {
		// Guard against queriers that skip status validation.
		_, err = domain.ParseReportStatus(report.Status.String())
	}
	if err != nil {
		if ctx.Err() != nil {
			span.AddEvent("loop_cancelled_during_query")
			return true
		}
		// Transient: keep the current state and try again next tick.
		m.metrics.IncStatusQueryErrors(ctx)
		m.logger.Debug(ctx, "Report status query failed, retrying next tick",
			"entity_key", loop.entityKey,
			"job_id", loop.jobID,
			"err", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "status query failed")
		return false
	}

	now := m.clock.Now()

	m.mu.Lock()
	if current, ok := m.loops[loop.entityKey]; !ok || current != loop {
		m.mu.Unlock()
		span.AddEvent("stale_response_discarded")
		return true
	}
	loop.state.Apply(report, now)
	final := loop.state
	terminal := report.Status.IsTerminal()
	if terminal {
		delete(m.loops, loop.entityKey)
	}
	m.mu.Unlock()

	span.SetAttributes(
		attribute.String("status", final.Status.String()),
		attribute.Int("progress", final.Progress),
	)

	if !terminal {
		span.AddEvent("progress_updated")
		span.SetStatus(codes.Ok, "progress updated")
		return false
	}

	m.metrics.AddActivePolls(ctx, -1)
	m.finish(ctx, loop, final, report)
	span.SetStatus(codes.Ok, "job reached terminal status")
	return true
}

// finish dispatches the completion callback, the user-facing notification
// and the run record for a loop whose job reached a terminal status.
func (m *PollingManager) finish(ctx context.Context, loop *pollLoop, final domain.PollingEntry, report domain.StatusReport) {
	logr := logger.NewLoggerContext(m.logger)
	logr.Add("entity_key", loop.entityKey, "job_id", loop.jobID, "status", final.Status)

	m.metrics.IncPollsFinished(ctx, final.Status)
	m.metrics.ObservePollDuration(ctx, final.Status, final.UpdatedAt.Sub(final.StartedAt))

	if loop.onComplete != nil {
		loop.onComplete(final.Status, report)
	}

	if n, ok := domain.NewTerminalNotification(loop.entityKey, loop.jobID, final.Status); ok && m.notifier != nil {
		if err := m.notifier.Notify(ctx, n); err != nil {
			logr.Warn(ctx, "Report notification delivery failed", "err", err)
		}
	}

	if m.recorder != nil {
		run := domain.NewReportRun(final, report.Data, final.UpdatedAt)
		if err := m.recorder.RecordRun(ctx, run); err != nil {
			logr.Error(ctx, "Recording report run failed", "run_id", run.ID, "err", err)
		}
	}

	logr.Info(ctx, "Report polling finished", "progress", final.Progress)
}

// StopPolling cancels the loop for entityKey without invoking its completion
// callback. Stopping an untracked key is a no-op.
func (m *PollingManager) StopPolling(entityKey string) {
	m.mu.Lock()
	loop, ok := m.loops[entityKey]
	if ok {
		delete(m.loops, entityKey)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	loop.cancel()
	m.metrics.AddActivePolls(context.Background(), -1)
	m.logger.Debug(context.Background(), "Report polling stopped", "entity_key", entityKey, "job_id", loop.jobID)
}

// StopAllPolling cancels every active loop and empties the tracking map.
func (m *PollingManager) StopAllPolling() {
	m.mu.Lock()
	loops := m.loops
	m.loops = make(map[string]*pollLoop)
	m.mu.Unlock()

	for _, loop := range loops {
		loop.cancel()
	}

	if n := len(loops); n > 0 {
		m.metrics.AddActivePolls(context.Background(), -int64(n))
		m.logger.Info(context.Background(), "All report polling stopped", "count", n)
	}
}

// Close stops every loop and waits for their goroutines to exit. Later
// StartPolling calls fail with ErrClosed. Close is safe to call repeatedly.
func (m *PollingManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.StopAllPolling()
	m.wg.Wait()
}

// IsPolling reports whether a loop is active for entityKey.
func (m *PollingManager) IsPolling(entityKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.loops[entityKey]
	return ok
}

// PollingStatus returns a copy of the tracking entry for entityKey.
func (m *PollingManager) PollingStatus(entityKey string) (domain.PollingEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loop, ok := m.loops[entityKey]
	if !ok {
		return domain.PollingEntry{}, false
	}
	return loop.state, true
}

// Snapshot returns a copy of every tracked entry keyed by entity key, for
// rendering without sharing the manager's state.
func (m *PollingManager) Snapshot() map[string]domain.PollingEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]domain.PollingEntry, len(m.loops))
	for k, loop := range m.loops {
		out[k] = loop.state
	}
	return out
}
