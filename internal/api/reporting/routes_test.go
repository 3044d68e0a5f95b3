package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/maidige/consultation-admin/internal/app/reporting"
	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

type mockPoller struct {
	mu      sync.Mutex
	entries map[string]domain.PollingEntry
	started []string
	stopped []string

	startErr error
}

func newMockPoller() *mockPoller {
	return &mockPoller{entries: make(map[string]domain.PollingEntry)}
}

func (m *mockPoller) StartPolling(_ context.Context, jobID, entityKey string, _ app.CompletionFunc) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, entityKey+"="+jobID)
	m.entries[entityKey] = domain.NewPollingEntry(entityKey, jobID, time.Now())
	return nil
}

func (m *mockPoller) StopPolling(entityKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, entityKey)
	delete(m.entries, entityKey)
}

func (m *mockPoller) PollingStatus(entityKey string) (domain.PollingEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entityKey]
	return e, ok
}

func (m *mockPoller) Snapshot() map[string]domain.PollingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.PollingEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

type mockGenerator struct {
	generateFunc func(ctx context.Context, consultationID string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, consultationID string, _ app.CompletionFunc) (string, error) {
	return m.generateFunc(ctx, consultationID)
}

type mockRunHistory struct {
	listRunsFunc func(ctx context.Context, entityKey string, limit int) ([]domain.ReportRun, error)
	getRunFunc   func(ctx context.Context, id uuid.UUID) (domain.ReportRun, error)
}

func (m *mockRunHistory) ListRuns(ctx context.Context, entityKey string, limit int) ([]domain.ReportRun, error) {
	return m.listRunsFunc(ctx, entityKey, limit)
}

func (m *mockRunHistory) GetRun(ctx context.Context, id uuid.UUID) (domain.ReportRun, error) {
	return m.getRunFunc(ctx, id)
}

func newRouter(cfg Config) http.Handler {
	if cfg.Log == nil {
		cfg.Log = logger.Noop()
	}
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) { Routes(r, cfg) })
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartAndStatus(t *testing.T) {
	poller := newMockPoller()
	h := newRouter(Config{Poller: poller})

	rec := do(t, h, http.MethodPost, "/v1/reports/polling/consultation:7", `{"job_id":"job-7"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "consultation:7", started.EntityKey)
	assert.Equal(t, "job-7", started.JobID)
	assert.Equal(t, []string{"consultation:7=job-7"}, poller.started)

	rec = do(t, h, http.MethodGet, "/v1/reports/polling/consultation:7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entry domain.PollingEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "job-7", entry.JobID)
	assert.Equal(t, domain.ReportStatusPending, entry.Status)
	assert.Equal(t, 0, entry.Progress)
}

func TestStart_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"job_id":`},
		{name: "missing job id", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poller := newMockPoller()
			h := newRouter(Config{Poller: poller})

			rec := do(t, h, http.MethodPost, "/v1/reports/polling/k", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, poller.started)
		})
	}
}

func TestStart_ManagerError(t *testing.T) {
	poller := newMockPoller()
	poller.startErr = errors.New("boom")
	h := newRouter(Config{Poller: poller})

	rec := do(t, h, http.MethodPost, "/v1/reports/polling/k", `{"job_id":"j"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestStart_ManagerClosed(t *testing.T) {
	poller := newMockPoller()
	poller.startErr = app.ErrClosed
	h := newRouter(Config{Poller: poller})

	rec := do(t, h, http.MethodPost, "/v1/reports/polling/k", `{"job_id":"j"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus_NotFound(t *testing.T) {
	h := newRouter(Config{Poller: newMockPoller()})

	rec := do(t, h, http.MethodGet, "/v1/reports/polling/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStop_Idempotent(t *testing.T) {
	poller := newMockPoller()
	h := newRouter(Config{Poller: poller})

	do(t, h, http.MethodPost, "/v1/reports/polling/k", `{"job_id":"j"}`)

	for range 2 {
		rec := do(t, h, http.MethodDelete, "/v1/reports/polling/k", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	_, ok := poller.PollingStatus("k")
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	poller := newMockPoller()
	h := newRouter(Config{Poller: poller})

	do(t, h, http.MethodPost, "/v1/reports/polling/a", `{"job_id":"ja"}`)
	do(t, h, http.MethodPost, "/v1/reports/polling/b", `{"job_id":"jb"}`)

	rec := do(t, h, http.MethodGet, "/v1/reports/polling", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "ja", resp.Polling["a"].JobID)
	assert.Equal(t, "jb", resp.Polling["b"].JobID)
}

func TestGenerate(t *testing.T) {
	gen := &mockGenerator{generateFunc: func(_ context.Context, id string) (string, error) {
		return "job-" + id, nil
	}}
	h := newRouter(Config{Poller: newMockPoller(), Generator: gen})

	rec := do(t, h, http.MethodPost, "/v1/consultations/42/comprehensive-report", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-42", resp.JobID)
	assert.Equal(t, "consultation:42", resp.EntityKey)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "empty job id", err: app.ErrInvalidJobID, wantStatus: http.StatusBadRequest},
		{name: "backend down", err: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{generateFunc: func(context.Context, string) (string, error) {
				return "", tt.err
			}}
			h := newRouter(Config{Poller: newMockPoller(), Generator: gen})

			rec := do(t, h, http.MethodPost, "/v1/consultations/1/comprehensive-report", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRuns(t *testing.T) {
	var gotLimit int
	lister := &mockRunHistory{listRunsFunc: func(_ context.Context, key string, limit int) ([]domain.ReportRun, error) {
		gotLimit = limit
		return []domain.ReportRun{{EntityKey: key, JobID: "j1", Status: domain.ReportStatusCompleted, Progress: 100}}, nil
	}}
	h := newRouter(Config{Poller: newMockPoller(), Runs: lister})

	rec := do(t, h, http.MethodGet, "/v1/reports/runs/consultation:1?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)

	var resp runsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "j1", resp.Runs[0].JobID)

	rec = do(t, h, http.MethodGet, "/v1/reports/runs/consultation:1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRunsLimit, gotLimit)

	rec = do(t, h, http.MethodGet, "/v1/reports/runs/consultation:1?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns_NoHistory(t *testing.T) {
	h := newRouter(Config{Poller: newMockPoller()})

	rec := do(t, h, http.MethodGet, "/v1/reports/runs/k", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRuns_EmptyIsArray(t *testing.T) {
	lister := &mockRunHistory{listRunsFunc: func(context.Context, string, int) ([]domain.ReportRun, error) {
		return nil, nil
	}}
	h := newRouter(Config{Poller: newMockPoller(), Runs: lister})

	rec := do(t, h, http.MethodGet, "/v1/reports/runs/k", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs":[]`)
}

func TestRunByID(t *testing.T) {
	known := uuid.New()
	history := &mockRunHistory{getRunFunc: func(_ context.Context, id uuid.UUID) (domain.ReportRun, error) {
		switch id {
		case known:
			return domain.ReportRun{ID: id, EntityKey: "consultation:1", JobID: "j1", Status: domain.ReportStatusCompleted, Progress: 100}, nil
		case uuid.Nil:
			return domain.ReportRun{}, errors.New("db down")
		default:
			return domain.ReportRun{}, domain.ErrRunNotFound
		}
	}}
	h := newRouter(Config{Poller: newMockPoller(), Runs: history})

	rec := do(t, h, http.MethodGet, "/v1/reports/runs/by-id/"+known.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.ReportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, known, got.ID)
	assert.Equal(t, "j1", got.JobID)

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "unknown run", id: uuid.NewString(), wantStatus: http.StatusNotFound},
		{name: "malformed id", id: "not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "store failure", id: uuid.Nil.String(), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/v1/reports/runs/by-id/"+tt.id, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRunByID_NoHistory(t *testing.T) {
	h := newRouter(Config{Poller: newMockPoller()})

	rec := do(t, h, http.MethodGet, "/v1/reports/runs/by-id/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
