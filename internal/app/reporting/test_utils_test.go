package reporting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
)

// fakeClock is a manually advanced clock. Tickers fire only from Advance.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{ch: make(chan time.Time, 1), period: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward and fires every live ticker whose next
// deadline has passed. Like time.Ticker, a tick is dropped when the previous
// one has not been received yet.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		t.fire(c.now)
	}
}

// tickerCount returns the number of tickers that were created.
func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || now.Before(t.next) {
		return
	}
	for !t.next.After(now) {
		t.next = t.next.Add(t.period)
	}
	select {
	case t.ch <- now:
	default:
	}
}

// mockStatusQuerier records every query and delegates to reportStatusFunc.
type mockStatusQuerier struct {
	mu               sync.Mutex
	calls            []string
	reportStatusFunc func(ctx context.Context, jobID string) (domain.StatusReport, error)
}

func (m *mockStatusQuerier) ReportStatus(ctx context.Context, jobID string) (domain.StatusReport, error) {
	m.mu.Lock()
	m.calls = append(m.calls, jobID)
	fn := m.reportStatusFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, jobID)
	}
	return domain.NewStatusReport(domain.ReportStatusProcessing, 0, nil), nil
}

func (m *mockStatusQuerier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockStatusQuerier) calledJobs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// sequenceQuerier returns the given results in order, repeating the last one.
func sequenceQuerier(results ...queryResult) *mockStatusQuerier {
	var (
		mu  sync.Mutex
		idx int
	)
	return &mockStatusQuerier{
		reportStatusFunc: func(context.Context, string) (domain.StatusReport, error) {
			mu.Lock()
			defer mu.Unlock()
			r := results[idx]
			if idx < len(results)-1 {
				idx++
			}
			return r.report, r.err
		},
	}
}

type queryResult struct {
	report domain.StatusReport
	err    error
}

type mockNotifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
	err           error
}

func (m *mockNotifier) Notify(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return m.err
}

func (m *mockNotifier) sent() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.notifications...)
}

type mockRunRecorder struct {
	mu   sync.Mutex
	runs []domain.ReportRun
}

func (m *mockRunRecorder) RecordRun(_ context.Context, run domain.ReportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockRunRecorder) ListRuns(_ context.Context, entityKey string, limit int) ([]domain.ReportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ReportRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].EntityKey == entityKey {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *mockRunRecorder) GetRun(_ context.Context, id uuid.UUID) (domain.ReportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return domain.ReportRun{}, domain.ErrRunNotFound
}

func (m *mockRunRecorder) recorded() []domain.ReportRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ReportRun(nil), m.runs...)
}

// completionRecorder captures CompletionFunc invocations.
type completionRecorder struct {
	mu    sync.Mutex
	calls []domain.ReportStatus
	last  domain.StatusReport
}

func (c *completionRecorder) fn(status domain.ReportStatus, report domain.StatusReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, status)
	c.last = report
}

func (c *completionRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *completionRecorder) statuses() []domain.ReportStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ReportStatus(nil), c.calls...)
}
