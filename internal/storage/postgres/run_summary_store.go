package postgres

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// RunSummaryStore implements storage.RunSummaryStore using PostgreSQL.
type RunSummaryStore struct {
	pool *Pool
}

// NewRunSummaryStore creates a new RunSummaryStore.
func NewRunSummaryStore(pool *Pool) *RunSummaryStore {
	return &RunSummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

// Insert stores a summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(ctx context.Context, sum *domain.RunSummary) error {
	if sum == nil || sum.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO run_summaries (
			run_id, start_ms, end_ms, starting_balance, final_balance,
			total_trades, net_profit, net_profit_pct, win_rate,
			max_drawdown, sharpe_ratio, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12
		)
	`

	started := time.Now()
	_, err := s.pool.Exec(ctx, query,
		sum.RunID, sum.StartMs, sum.EndMs, sum.StartingBalance, sum.FinalBalance,
		sum.TotalTrades, sum.NetProfit, sum.NetProfitPct, sum.WinRate,
		sum.MaxDrawdown, sum.SharpeRatio, sum.CreatedAt,
	)
	observability.RecordDBQuery("postgres", "insert_run_summary", time.Since(started).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

const selectSummaryColumns = `
	run_id, start_ms, end_ms, starting_balance, final_balance,
	total_trades, net_profit, net_profit_pct, win_rate,
	max_drawdown, sharpe_ratio, created_at
`

// GetByID retrieves a summary. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT` + selectSummaryColumns + `FROM run_summaries WHERE run_id = $1`

	var sum domain.RunSummary
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&sum.RunID, &sum.StartMs, &sum.EndMs, &sum.StartingBalance, &sum.FinalBalance,
		&sum.TotalTrades, &sum.NetProfit, &sum.NetProfitPct, &sum.WinRate,
		&sum.MaxDrawdown, &sum.SharpeRatio, &sum.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run summary: %w", err)
	}
	return &sum, nil
}

// GetAll retrieves every summary ordered by created_at ASC, run_id ASC.
func (s *RunSummaryStore) GetAll(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `SELECT` + selectSummaryColumns + `FROM run_summaries ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query run summaries: %w", err)
	}
	defer rows.Close()

	var sums []*domain.RunSummary
	for rows.Next() {
		var sum domain.RunSummary
		err := rows.Scan(
			&sum.RunID, &sum.StartMs, &sum.EndMs, &sum.StartingBalance, &sum.FinalBalance,
			&sum.TotalTrades, &sum.NetProfit, &sum.NetProfitPct, &sum.WinRate,
			&sum.MaxDrawdown, &sum.SharpeRatio, &sum.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		sums = append(sums, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summaries: %w", err)
	}
	return sums, nil
}
