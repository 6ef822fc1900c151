package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// RunSummaryStore is an in-memory implementation of storage.RunSummaryStore.
type RunSummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunSummaryStore creates a new in-memory run summary store.
func NewRunSummaryStore() *RunSummaryStore {
	return &RunSummaryStore{
		data: make(map[string]*domain.RunSummary),
	}
}

var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

// Insert stores a summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(_ context.Context, sum *domain.RunSummary) error {
	if sum == nil || sum.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sum.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *sum
	s.data[sum.RunID] = &cp
	return nil
}

// GetByID retrieves a summary. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *sum
	return &cp, nil
}

// GetAll retrieves every summary ordered by created_at ASC, run_id ASC.
func (s *RunSummaryStore) GetAll(_ context.Context) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunSummary, 0, len(s.data))
	for _, sum := range s.data {
		cp := *sum
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}
