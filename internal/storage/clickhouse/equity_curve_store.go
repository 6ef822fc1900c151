package clickhouse

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk stores a run's equity curve. A run's curve is written once;
// any existing rows for the run make the whole batch a duplicate.
func (s *EquityCurveStore) InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(points))
	for _, p := range points {
		if _, exists := seen[p.Time]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.Time] = struct{}{}
	}

	existing, err := s.countRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("check existing curve: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	started := time.Now()
	err = s.insertBatch(ctx, runID, points)
	observability.RecordDBQuery("clickhouse", "insert_equity_curve", time.Since(started).Seconds(), err)
	return err
}

func (s *EquityCurveStore) insertBatch(ctx context.Context, runID string, points []domain.EquityPoint) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curve (run_id, time_ms, equity)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(runID, uint64(p.Time), p.Equity); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves a run's equity curve ordered by time ASC.
func (s *EquityCurveStore) GetByRun(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	query := `
		SELECT time_ms, equity
		FROM equity_curve
		WHERE run_id = ?
		ORDER BY time_ms ASC
	`

	started := time.Now()
	rows, err := s.conn.Query(ctx, query, runID)
	observability.RecordDBQuery("clickhouse", "get_equity_curve", time.Since(started).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		var timeMs uint64
		if err := rows.Scan(&timeMs, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		p.Time = int64(timeMs)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity curve: %w", err)
	}
	return points, nil
}

// countRun counts existing rows for the run.
func (s *EquityCurveStore) countRun(ctx context.Context, runID string) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM equity_curve WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
