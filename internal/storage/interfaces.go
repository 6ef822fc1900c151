// Package storage defines the persistence interfaces for candle data and
// run outputs. Implementations live in the memory, postgres, and
// clickhouse subpackages; the engine itself never touches storage, it is
// fed and drained by the callers in cmd.
package storage

import (
	"context"

	"backtest-lab/internal/domain"
)

// CandleStore provides access to base-resolution candle history.
type CandleStore interface {
	// InsertBulk adds candles for one exchange-symbol series. Returns
	// ErrDuplicateKey on any (exchange, symbol, open_time) collision.
	InsertBulk(ctx context.Context, exchange, symbol string, candles []domain.Candle) error

	// GetRange retrieves candles with open_time in [start, end] inclusive,
	// ordered by open_time ASC.
	GetRange(ctx context.Context, exchange, symbol string, start, end int64) ([]domain.Candle, error)

	// Bounds returns the first and last stored open_time for the series.
	// Returns ErrNotFound when the series has no candles.
	Bounds(ctx context.Context, exchange, symbol string) (start, end int64, err error)
}

// ClosedTradeStore provides access to the per-run trade log.
type ClosedTradeStore interface {
	// InsertBulk stores a run's trades. Returns ErrDuplicateKey if any
	// (run_id, trade_id) already exists.
	InsertBulk(ctx context.Context, runID string, trades []*domain.ClosedTrade) error

	// GetByRun retrieves a run's trades ordered by closed_at ASC,
	// trade_id ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.ClosedTrade, error)
}

// EquityCurveStore provides access to per-run equity samples.
type EquityCurveStore interface {
	// InsertBulk stores a run's equity curve. Returns ErrDuplicateKey on
	// any (run_id, time) collision.
	InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) error

	// GetByRun retrieves a run's equity curve ordered by time ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.EquityPoint, error)
}

// RunSummaryStore provides access to run digests.
type RunSummaryStore interface {
	// Insert stores a summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByID retrieves a summary. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetAll retrieves every summary ordered by created_at ASC, run_id ASC.
	GetAll(ctx context.Context) ([]*domain.RunSummary, error)
}
