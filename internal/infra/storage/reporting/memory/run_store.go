// Package memory keeps report run history in process memory. It backs the
// watcher when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
)

var _ domain.RunRecorder = (*RunStore)(nil)

// DefaultMaxRunsPerKey bounds the history kept for a single entity key.
const DefaultMaxRunsPerKey = 50

// RunStore is a domain.RunRecorder backed by a map. It is safe for
// concurrent use.
type RunStore struct {
	mu        sync.RWMutex
	runs      map[string][]domain.ReportRun
	byID      map[uuid.UUID]string
	maxPerKey int
}

// NewRunStore creates an empty store keeping at most maxPerKey runs per
// entity key. A non-positive value uses DefaultMaxRunsPerKey.
func NewRunStore(maxPerKey int) *RunStore {
	if maxPerKey <= 0 {
		maxPerKey = DefaultMaxRunsPerKey
	}
	return &RunStore{
		runs:      make(map[string][]domain.ReportRun),
		byID:      make(map[uuid.UUID]string),
		maxPerKey: maxPerKey,
	}
}

// RecordRun stores run. Recording the same run id twice is a no-op.
func (s *RunStore) RecordRun(_ context.Context, run domain.ReportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[run.ID]; ok {
		return nil
	}
	s.byID[run.ID] = run.EntityKey

	runs := append(s.runs[run.EntityKey], run)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	if len(runs) > s.maxPerKey {
		for _, dropped := range runs[s.maxPerKey:] {
			delete(s.byID, dropped.ID)
		}
		runs = runs[:s.maxPerKey]
	}
	s.runs[run.EntityKey] = runs
	return nil
}

// ListRuns returns up to limit runs for entityKey, newest first. A
// non-positive limit returns all of them.
func (s *RunStore) ListRuns(_ context.Context, entityKey string, limit int) ([]domain.ReportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.runs[entityKey]
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	out := make([]domain.ReportRun, len(runs))
	copy(out, runs)
	return out, nil
}

// GetRun returns the run with id while it is still retained.
func (s *RunStore) GetRun(_ context.Context, id uuid.UUID) (domain.ReportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byID[id]
	if !ok {
		return domain.ReportRun{}, domain.ErrRunNotFound
	}
	for _, run := range s.runs[key] {
		if run.ID == id {
			return run, nil
		}
	}
	return domain.ReportRun{}, domain.ErrRunNotFound
}
