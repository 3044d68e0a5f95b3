package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/internal/infra/storage"
)

var _ domain.RunRecorder = (*runStore)(nil)

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

// dbtx is the subset of *pgxpool.Pool the store uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// runStore implements domain.RunRecorder using PostgreSQL.
type runStore struct {
	db     dbtx
	tracer trace.Tracer
}

// NewRunStore creates a PostgreSQL-backed report run history.
func NewRunStore(db dbtx, tracer trace.Tracer) *runStore {
	return &runStore{db: db, tracer: tracer}
}

const insertRunSQL = `
INSERT INTO report_runs (id, entity_key, job_id, status, progress, started_at, finished_at, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// RecordRun persists a finished polling loop. Recording the same run twice
// is a no-op.
func (s *runStore) RecordRun(ctx context.Context, run domain.ReportRun) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("run_id", run.ID.String()),
		attribute.String("entity_key", run.EntityKey),
		attribute.String("job_id", run.JobID),
		attribute.String("status", run.Status.String()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.record_report_run", dbAttrs, func(ctx context.Context) error {
		var payload []byte
		if run.Payload != nil {
			var err error
			if payload, err = json.Marshal(run.Payload); err != nil {
				return fmt.Errorf("failed to marshal run payload: %w", err)
			}
		}

		_, err := s.db.Exec(ctx, insertRunSQL,
			run.ID,
			run.EntityKey,
			run.JobID,
			run.Status.String(),
			run.Progress,
			run.StartedAt.UTC(),
			run.FinishedAt.UTC(),
			payload,
		)
		if err != nil {
			return fmt.Errorf("failed to insert report run: %w", err)
		}
		return nil
	})
}

const listRunsSQL = `
SELECT id, entity_key, job_id, status, progress, started_at, finished_at, payload
FROM report_runs
WHERE entity_key = $1
ORDER BY finished_at DESC
LIMIT $2`

// DefaultListLimit applies when ListRuns is called with a non-positive limit.
const DefaultListLimit = 20

// ListRuns returns up to limit runs for entityKey, newest first.
func (s *runStore) ListRuns(ctx context.Context, entityKey string, limit int) ([]domain.ReportRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("entity_key", entityKey),
		attribute.Int("limit", limit),
	)

	var runs []domain.ReportRun
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.list_report_runs", dbAttrs, func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, listRunsSQL, entityKey, limit)
		if err != nil {
			return fmt.Errorf("failed to query report runs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate report runs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

const getRunSQL = `
SELECT id, entity_key, job_id, status, progress, started_at, finished_at, payload
FROM report_runs
WHERE id = $1`

// GetRun returns a single run by id.
func (s *runStore) GetRun(ctx context.Context, id uuid.UUID) (domain.ReportRun, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("run_id", id.String()))

	var run domain.ReportRun
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_report_run", dbAttrs, func(ctx context.Context) error {
		var err error
		run, err = scanRun(s.db.QueryRow(ctx, getRunSQL, id))
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRunNotFound
		}
		return err
	})
	return run, err
}

func scanRun(row pgx.Row) (domain.ReportRun, error) {
	var (
		run        domain.ReportRun
		id         string
		status     string
		startedAt  time.Time
		finishedAt time.Time
		payload    []byte
	)
	if err := row.Scan(
		&id,
		&run.EntityKey,
		&run.JobID,
		&status,
		&run.Progress,
		&startedAt,
		&finishedAt,
		&payload,
	); err != nil {
		return domain.ReportRun{}, fmt.Errorf("failed to scan report run: %w", err)
	}

	runID, err := uuid.Parse(id)
	if err != nil {
		return domain.ReportRun{}, fmt.Errorf("invalid report run id %q: %w", id, err)
	}
	run.ID = runID

	parsed, err := domain.ParseReportStatus(status)
	if err != nil {
		return domain.ReportRun{}, fmt.Errorf("report run %s: %w", id, err)
	}
	run.Status = parsed
	run.StartedAt = startedAt.UTC()
	run.FinishedAt = finishedAt.UTC()

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &run.Payload); err != nil {
			return domain.ReportRun{}, fmt.Errorf("failed to unmarshal run payload: %w", err)
		}
	}
	return run, nil
}
