package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// ClosedTradeStore is an in-memory implementation of storage.ClosedTradeStore.
type ClosedTradeStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.ClosedTrade // run_id -> trade_id -> trade
}

// NewClosedTradeStore creates a new in-memory closed trade store.
func NewClosedTradeStore() *ClosedTradeStore {
	return &ClosedTradeStore{
		data: make(map[string]map[string]*domain.ClosedTrade),
	}
}

var _ storage.ClosedTradeStore = (*ClosedTradeStore)(nil)

// InsertBulk stores a run's trades atomically. Fails the entire batch on
// any duplicate trade_id, existing or intra-batch.
func (s *ClosedTradeStore) InsertBulk(_ context.Context, runID string, trades []*domain.ClosedTrade) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batch := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := existing[t.TradeID]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := batch[t.TradeID]; ok {
			return storage.ErrDuplicateKey
		}
		batch[t.TradeID] = struct{}{}
	}

	if existing == nil {
		existing = make(map[string]*domain.ClosedTrade, len(trades))
		s.data[runID] = existing
	}
	for _, t := range trades {
		cp := *t
		existing[t.TradeID] = &cp
	}
	return nil
}

// GetByRun retrieves a run's trades ordered by closed_at ASC, trade_id ASC.
func (s *ClosedTradeStore) GetByRun(_ context.Context, runID string) ([]*domain.ClosedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClosedTrade
	for _, t := range s.data[runID] {
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ClosedAt != result[j].ClosedAt {
			return result[i].ClosedAt < result[j].ClosedAt
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}
