package memory

import (
	"context"
	"errors"
	"testing"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func testCandle(openTime int64, close float64) domain.Candle {
	return domain.Candle{
		OpenTime: openTime,
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		Volume:   1,
	}
}

func TestCandleStore_InsertAndGetRange(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		testCandle(0, 100),
		testCandle(60_000, 101),
		testCandle(120_000, 102),
	}
	if err := store.InsertBulk(ctx, "binance", "BTC-USDT", candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetRange(ctx, "binance", "BTC-USDT", 60_000, 120_000)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].OpenTime != 60_000 || got[1].OpenTime != 120_000 {
		t.Errorf("candles out of order: %v", got)
	}
}

func TestCandleStore_DuplicateOpenTime(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "binance", "BTC-USDT", []domain.Candle{testCandle(0, 100)}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "binance", "BTC-USDT", []domain.Candle{testCandle(0, 101)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCandleStore_Bounds(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if _, _, err := store.Bounds(ctx, "binance", "BTC-USDT"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty series, got %v", err)
	}

	candles := []domain.Candle{
		testCandle(60_000, 100),
		testCandle(0, 99),
		testCandle(120_000, 101),
	}
	if err := store.InsertBulk(ctx, "binance", "BTC-USDT", candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	start, end, err := store.Bounds(ctx, "binance", "BTC-USDT")
	if err != nil {
		t.Fatalf("Bounds failed: %v", err)
	}
	if start != 0 || end != 120_000 {
		t.Errorf("bounds mismatch: got [%d, %d]", start, end)
	}
}
