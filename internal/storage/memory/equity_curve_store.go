package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]float64 // run_id -> time -> equity
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string]map[int64]float64),
	}
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk stores a run's equity curve atomically.
func (s *EquityCurveStore) InsertBulk(_ context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batch := make(map[int64]struct{}, len(points))
	for _, p := range points {
		if _, ok := existing[p.Time]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := batch[p.Time]; ok {
			return storage.ErrDuplicateKey
		}
		batch[p.Time] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]float64, len(points))
		s.data[runID] = existing
	}
	for _, p := range points {
		existing[p.Time] = p.Equity
	}
	return nil
}

// GetByRun retrieves a run's equity curve ordered by time ASC.
func (s *EquityCurveStore) GetByRun(_ context.Context, runID string) ([]domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.EquityPoint
	for ts, eq := range s.data[runID] {
		result = append(result, domain.EquityPoint{Time: ts, Equity: eq})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})
	return result, nil
}
