package postgres

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// ClosedTradeStore implements storage.ClosedTradeStore using PostgreSQL.
type ClosedTradeStore struct {
	pool *Pool
}

// NewClosedTradeStore creates a new ClosedTradeStore.
func NewClosedTradeStore(pool *Pool) *ClosedTradeStore {
	return &ClosedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClosedTradeStore = (*ClosedTradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO closed_trades (
		run_id, trade_id, route_key, exchange, symbol, timeframe, strategy_id,
		side, quantity, entry_price, exit_price,
		opened_at, closed_at, realized_pnl, fees
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11,
		$12, $13, $14, $15
	)
`

// InsertBulk stores a run's trades atomically. Fails the entire batch on
// any duplicate (run_id, trade_id).
func (s *ClosedTradeStore) InsertBulk(ctx context.Context, runID string, trades []*domain.ClosedTrade) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	started := time.Now()
	err := s.insertBulk(ctx, runID, trades)
	observability.RecordDBQuery("postgres", "insert_closed_trades", time.Since(started).Seconds(), err)
	return err
}

func (s *ClosedTradeStore) insertBulk(ctx context.Context, runID string, trades []*domain.ClosedTrade) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTradeQuery,
			runID, t.TradeID, t.RouteKey, t.Exchange, t.Symbol, string(t.Timeframe), t.StrategyID,
			string(t.Side), t.Quantity, t.EntryPrice, t.ExitPrice,
			t.OpenedAt, t.ClosedAt, t.RealizedPnl, t.Fees,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert closed trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRun retrieves a run's trades ordered by closed_at ASC, trade_id ASC.
func (s *ClosedTradeStore) GetByRun(ctx context.Context, runID string) ([]*domain.ClosedTrade, error) {
	query := `
		SELECT trade_id, route_key, exchange, symbol, timeframe, strategy_id,
		       side, quantity, entry_price, exit_price,
		       opened_at, closed_at, realized_pnl, fees
		FROM closed_trades
		WHERE run_id = $1
		ORDER BY closed_at ASC, trade_id ASC
	`

	started := time.Now()
	rows, err := s.pool.Query(ctx, query, runID)
	observability.RecordDBQuery("postgres", "get_closed_trades", time.Since(started).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		var timeframe, side string
		err := rows.Scan(
			&t.TradeID, &t.RouteKey, &t.Exchange, &t.Symbol, &timeframe, &t.StrategyID,
			&side, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
			&t.OpenedAt, &t.ClosedAt, &t.RealizedPnl, &t.Fees,
		)
		if err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		t.Timeframe = domain.Timeframe(timeframe)
		t.Side = domain.PositionSide(side)
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed trades: %w", err)
	}
	return trades, nil
}
