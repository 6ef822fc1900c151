package clickhouse

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles for one series. MergeTree does not enforce
// uniqueness, so collisions against existing rows and within the batch
// are checked explicitly before insert.
func (s *CandleStore) InsertBulk(ctx context.Context, exchange, symbol string, candles []domain.Candle) error {
	if exchange == "" || symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(candles))
	minTime, maxTime := candles[0].OpenTime, candles[0].OpenTime
	for _, c := range candles {
		if _, exists := seen[c.OpenTime]; exists {
			return storage.ErrDuplicateKey
		}
		seen[c.OpenTime] = struct{}{}
		if c.OpenTime < minTime {
			minTime = c.OpenTime
		}
		if c.OpenTime > maxTime {
			maxTime = c.OpenTime
		}
	}

	overlap, err := s.countRange(ctx, exchange, symbol, minTime, maxTime)
	if err != nil {
		return fmt.Errorf("check existing candles: %w", err)
	}
	if overlap > 0 {
		return storage.ErrDuplicateKey
	}

	started := time.Now()
	err = s.insertBatch(ctx, exchange, symbol, candles)
	observability.RecordDBQuery("clickhouse", "insert_candles", time.Since(started).Seconds(), err)
	return err
}

func (s *CandleStore) insertBatch(ctx context.Context, exchange, symbol string, candles []domain.Candle) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			exchange, symbol, open_time, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			exchange, symbol, uint64(c.OpenTime),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRange retrieves candles with open_time in [start, end] inclusive,
// ordered by open_time ASC.
func (s *CandleStore) GetRange(ctx context.Context, exchange, symbol string, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE exchange = ? AND symbol = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`

	queryStart := time.Now()
	rows, err := s.conn.Query(ctx, query, exchange, symbol, uint64(start), uint64(end))
	observability.RecordDBQuery("clickhouse", "get_candles", time.Since(queryStart).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Bounds returns the first and last stored open_time for the series.
func (s *CandleStore) Bounds(ctx context.Context, exchange, symbol string) (int64, int64, error) {
	query := `
		SELECT count(*), min(open_time), max(open_time)
		FROM candles
		WHERE exchange = ? AND symbol = ?
	`

	var count, minTime, maxTime uint64
	if err := s.conn.QueryRow(ctx, query, exchange, symbol).Scan(&count, &minTime, &maxTime); err != nil {
		return 0, 0, fmt.Errorf("query candle bounds: %w", err)
	}
	if count == 0 {
		return 0, 0, storage.ErrNotFound
	}
	return int64(minTime), int64(maxTime), nil
}

// countRange counts existing rows with open_time in [start, end].
func (s *CandleStore) countRange(ctx context.Context, exchange, symbol string, start, end int64) (uint64, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE exchange = ? AND symbol = ? AND open_time >= ? AND open_time <= ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, exchange, symbol, uint64(start), uint64(end)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		var openTime uint64
		if err := rows.Scan(&openTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.OpenTime = int64(openTime)
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}
	return candles, nil
}
