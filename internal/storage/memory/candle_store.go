// Package memory holds in-memory store implementations, used in tests and
// single-process runs that never persist anything.
package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Candle // series key -> open_time -> candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]map[int64]domain.Candle),
	}
}

var _ storage.CandleStore = (*CandleStore)(nil)

func seriesKey(exchange, symbol string) string {
	return exchange + "-" + symbol
}

// InsertBulk adds candles for one series. Fails the entire batch on any
// duplicate open_time, existing or intra-batch.
func (s *CandleStore) InsertBulk(_ context.Context, exchange, symbol string, candles []domain.Candle) error {
	if exchange == "" || symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey(exchange, symbol)
	existing := s.data[key]

	batch := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, ok := existing[c.OpenTime]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := batch[c.OpenTime]; ok {
			return storage.ErrDuplicateKey
		}
		batch[c.OpenTime] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]domain.Candle, len(candles))
		s.data[key] = existing
	}
	for _, c := range candles {
		existing[c.OpenTime] = c
	}
	return nil
}

// GetRange retrieves candles with open_time in [start, end], ordered by
// open_time ASC.
func (s *CandleStore) GetRange(_ context.Context, exchange, symbol string, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for ts, c := range s.data[seriesKey(exchange, symbol)] {
		if ts >= start && ts <= end {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime < result[j].OpenTime
	})
	return result, nil
}

// Bounds returns the first and last stored open_time for the series.
func (s *CandleStore) Bounds(_ context.Context, exchange, symbol string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[seriesKey(exchange, symbol)]
	if len(series) == 0 {
		return 0, 0, storage.ErrNotFound
	}

	first := true
	var start, end int64
	for ts := range series {
		if first {
			start, end = ts, ts
			first = false
			continue
		}
		if ts < start {
			start = ts
		}
		if ts > end {
			end = ts
		}
	}
	return start, end, nil
}
