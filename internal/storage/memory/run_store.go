package memory

import (
	"context"
	"sort"
	"sync"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunResult // keyed by run ID
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunResult),
	}
}

var _ storage.RunStore = (*RunStore)(nil)

// Save inserts or replaces a run keyed by its run ID.
func (s *RunStore) Save(_ context.Context, run *domain.RunResult) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves one run. Returns ErrNotFound if not present.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// GetByStrategy retrieves all runs for a strategy, newest start date first.
func (s *RunStore) GetByStrategy(_ context.Context, strategyName string) ([]*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunResult
	for _, run := range s.data {
		if run.StrategyName == strategyName {
			result = append(result, copyRun(run))
		}
	}
	sortRuns(result)
	return result, nil
}

// GetAll retrieves all stored runs, newest start date first.
func (s *RunStore) GetAll(_ context.Context) ([]*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunResult, 0, len(s.data))
	for _, run := range s.data {
		result = append(result, copyRun(run))
	}
	sortRuns(result)
	return result, nil
}

// sortRuns orders newest start date first, run ID as tie-break for a
// stable listing.
func sortRuns(runs []*domain.RunResult) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartDate.Equal(runs[j].StartDate) {
			return runs[i].StartDate.After(runs[j].StartDate)
		}
		return runs[i].RunID < runs[j].RunID
	})
}

// copyRun deep-copies a run so callers can never mutate stored state.
func copyRun(run *domain.RunResult) *domain.RunResult {
	out := *run
	out.Snapshots = make([]domain.PortfolioSnapshot, len(run.Snapshots))
	copy(out.Snapshots, run.Snapshots)
	out.Trades = make([]domain.Trade, len(run.Trades))
	copy(out.Trades, run.Trades)
	return &out
}
