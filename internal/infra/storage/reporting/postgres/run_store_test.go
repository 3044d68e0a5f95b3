package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/internal/infra/storage"
)

var runColumns = []string{
	"id", "entity_key", "job_id", "status", "progress", "started_at", "finished_at", "payload",
}

func sampleRun() domain.ReportRun {
	finished := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	return domain.ReportRun{
		ID:         uuid.New(),
		EntityKey:  "consultation:42",
		JobID:      "job-42",
		Status:     domain.ReportStatusCompleted,
		Progress:   100,
		StartedAt:  finished.Add(-90 * time.Second),
		FinishedAt: finished,
		Payload:    map[string]any{"report_url": "https://example.com/r.pdf"},
	}
}

func TestRunStore_RecordRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := sampleRun()
	payload, err := json.Marshal(run.Payload)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO report_runs \(`).
		WithArgs(run.ID, run.EntityKey, run.JobID, "completed", 100, run.StartedAt, run.FinishedAt, payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewRunStore(mock, storage.NoOpTracer())
	require.NoError(t, store.RecordRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_RecordRunError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO report_runs \(`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	store := NewRunStore(mock, storage.NoOpTracer())
	err = store.RecordRun(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert report run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_ListRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := sampleRun()
	failedID := uuid.New()
	rows := pgxmock.NewRows(runColumns).
		AddRow(run.ID.String(), run.EntityKey, run.JobID, "completed", 100,
			run.StartedAt, run.FinishedAt, []byte(`{"report_url":"https://example.com/r.pdf"}`)).
		AddRow(failedID.String(), run.EntityKey, "job-41", "failed", 40,
			run.StartedAt.Add(-time.Hour), run.FinishedAt.Add(-time.Hour), []byte(nil))

	mock.ExpectQuery(`SELECT id, entity_key, job_id, status`).
		WithArgs(run.EntityKey, 10).
		WillReturnRows(rows)

	store := NewRunStore(mock, storage.NoOpTracer())
	runs, err := store.ListRuns(context.Background(), run.EntityKey, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, domain.ReportStatusCompleted, runs[0].Status)
	assert.Equal(t, "https://example.com/r.pdf", runs[0].Payload["report_url"])
	assert.Equal(t, 90*time.Second, runs[0].Duration())

	assert.Equal(t, failedID, runs[1].ID)
	assert.Equal(t, domain.ReportStatusFailed, runs[1].Status)
	assert.Equal(t, 40, runs[1].Progress)
	assert.Nil(t, runs[1].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_ListRunsRejectsUnknownStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(runColumns).
		AddRow(uuid.NewString(), "k", "job", "exploded", 0, time.Now(), time.Now(), []byte(nil))
	mock.ExpectQuery(`SELECT id, entity_key, job_id, status`).
		WithArgs("k", 5).
		WillReturnRows(rows)

	store := NewRunStore(mock, storage.NoOpTracer())
	_, err = store.ListRuns(context.Background(), "k", 5)
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)
}

func TestRunStore_GetRunNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT id, entity_key, job_id, status`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	store := NewRunStore(mock, storage.NoOpTracer())
	_, err = store.GetRun(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool, storage.NoOpTracer())

	first := sampleRun()
	second := sampleRun()
	second.FinishedAt = first.FinishedAt.Add(time.Minute)
	second.Status = domain.ReportStatusFailed
	second.Progress = 60
	second.Payload = nil

	require.NoError(t, store.RecordRun(ctx, first))
	require.NoError(t, store.RecordRun(ctx, second))
	// Re-recording is ignored.
	require.NoError(t, store.RecordRun(ctx, first))

	runs, err := store.ListRuns(ctx, first.EntityKey, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, domain.ReportStatusFailed, runs[0].Status)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, first.Payload, runs[1].Payload)

	got, err := store.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, got.JobID)
	assert.True(t, first.FinishedAt.Equal(got.FinishedAt))

	_, err = store.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
