// Package reporting exposes the report polling registry over HTTP.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maidige/consultation-admin/internal/api/errs"
	app "github.com/maidige/consultation-admin/internal/app/reporting"
	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

// Poller is the part of the polling manager the handlers drive.
type Poller interface {
	StartPolling(ctx context.Context, jobID, entityKey string, onComplete app.CompletionFunc) error
	StopPolling(entityKey string)
	PollingStatus(entityKey string) (domain.PollingEntry, bool)
	Snapshot() map[string]domain.PollingEntry
}

// ReportGenerator requests a report and starts polling it.
type ReportGenerator interface {
	Generate(ctx context.Context, consultationID string, onComplete app.CompletionFunc) (string, error)
}

// RunHistory reads recorded runs.
type RunHistory interface {
	ListRuns(ctx context.Context, entityKey string, limit int) ([]domain.ReportRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (domain.ReportRun, error)
}

// Config contains the dependencies needed by the reporting handlers.
type Config struct {
	Log       *logger.Logger
	Poller    Poller
	Generator ReportGenerator
	// Runs may be nil when no history store is configured.
	Runs RunHistory
}

const defaultRunsLimit = 20

// Routes binds the reporting endpoints onto r.
func Routes(r chi.Router, cfg Config) {
	r.Get("/reports/polling", snapshot(cfg))
	r.Get("/reports/polling/{key}", status(cfg))
	r.Post("/reports/polling/{key}", start(cfg))
	r.Delete("/reports/polling/{key}", stop(cfg))
	r.Get("/reports/runs/by-id/{id}", run(cfg))
	r.Get("/reports/runs/{key}", runs(cfg))
	r.Post("/consultations/{id}/comprehensive-report", generate(cfg))
}

// snapshotResponse mirrors the reportPolling view: entity key to entry.
type snapshotResponse struct {
	Polling map[string]domain.PollingEntry `json:"report_polling"`
	Count   int                            `json:"count"`
}

func snapshot(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := cfg.Poller.Snapshot()
		writeJSON(w, http.StatusOK, snapshotResponse{Polling: entries, Count: len(entries)})
	}
}

func status(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		entry, ok := cfg.Poller.PollingStatus(key)
		if !ok {
			errs.Newf(errs.NotFound, "no report polling for %s", key).Write(w)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// startRequest starts polling an already-created job.
type startRequest struct {
	JobID string `json:"job_id" validate:"required"`
}

type startResponse struct {
	EntityKey string `json:"entity_key"`
	JobID     string `json:"job_id"`
}

func start(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := chi.URLParam(r, "key")

		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errs.New(errs.InvalidArgument, err).Write(w)
			return
		}
		if err := errs.Check(req); err != nil {
			errs.New(errs.InvalidArgument, err).Write(w)
			return
		}

		if err := cfg.Poller.StartPolling(ctx, req.JobID, key, logCompletion(ctx, cfg.Log, key)); err != nil {
			if errors.Is(err, app.ErrInvalidJobID) || errors.Is(err, app.ErrInvalidEntityKey) {
				errs.New(errs.InvalidArgument, err).Write(w)
				return
			}
			if errors.Is(err, app.ErrClosed) {
				errs.New(errs.Unavailable, err).Write(w)
				return
			}
			cfg.Log.Error(ctx, "Failed to start report polling", "entity_key", key, "err", err)
			errs.New(errs.Internal, err).Write(w)
			return
		}

		writeJSON(w, http.StatusAccepted, startResponse{EntityKey: key, JobID: req.JobID})
	}
}

func stop(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Poller.StopPolling(chi.URLParam(r, "key"))
		w.WriteHeader(http.StatusNoContent)
	}
}

type runsResponse struct {
	EntityKey string             `json:"entity_key"`
	Runs      []domain.ReportRun `json:"runs"`
}

func runs(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := chi.URLParam(r, "key")

		if cfg.Runs == nil {
			errs.Newf(errs.Unavailable, "report run history is not configured").Write(w)
			return
		}

		limit := defaultRunsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 500 {
				errs.Newf(errs.InvalidArgument, "limit must be between 1 and 500").Write(w)
				return
			}
			limit = n
		}

		list, err := cfg.Runs.ListRuns(ctx, key, limit)
		if err != nil {
			cfg.Log.Error(ctx, "Failed to list report runs", "entity_key", key, "err", err)
			errs.New(errs.Internal, err).Write(w)
			return
		}
		if list == nil {
			list = []domain.ReportRun{}
		}
		writeJSON(w, http.StatusOK, runsResponse{EntityKey: key, Runs: list})
	}
}

func run(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if cfg.Runs == nil {
			errs.Newf(errs.Unavailable, "report run history is not configured").Write(w)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			errs.Newf(errs.InvalidArgument, "run id must be a uuid").Write(w)
			return
		}

		found, err := cfg.Runs.GetRun(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrRunNotFound):
			errs.Newf(errs.NotFound, "no report run %s", id).Write(w)
			return
		default:
			cfg.Log.Error(ctx, "Failed to get report run", "run_id", id, "err", err)
			errs.New(errs.Internal, err).Write(w)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

type generateResponse struct {
	ConsultationID string `json:"consultation_id"`
	EntityKey      string `json:"entity_key"`
	JobID          string `json:"job_id"`
}

func generate(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")
		key := app.EntityKeyForConsultation(id)

		// The body is optional and currently carries nothing.
		_, _ = io.Copy(io.Discard, r.Body)

		jobID, err := cfg.Generator.Generate(ctx, id, logCompletion(ctx, cfg.Log, key))
		switch {
		case err == nil:
		case errors.Is(err, app.ErrInvalidConsultationID), errors.Is(err, app.ErrInvalidJobID):
			errs.New(errs.InvalidArgument, err).Write(w)
			return
		default:
			cfg.Log.Error(ctx, "Failed to generate comprehensive report", "consultation_id", id, "err", err)
			errs.New(errs.Unavailable, err).Write(w)
			return
		}

		writeJSON(w, http.StatusAccepted, generateResponse{ConsultationID: id, EntityKey: key, JobID: jobID})
	}
}

// logCompletion returns a callback that logs the terminal state. The
// notifier configured on the manager handles user-facing delivery.
func logCompletion(ctx context.Context, log *logger.Logger, key string) app.CompletionFunc {
	ctx = context.WithoutCancel(ctx)
	return func(status domain.ReportStatus, report domain.StatusReport) {
		log.Info(ctx, "Report job reached terminal status",
			"entity_key", key,
			"status", status,
			"progress", report.Progress,
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
