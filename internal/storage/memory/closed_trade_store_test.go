package memory

import (
	"context"
	"errors"
	"testing"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func TestClosedTradeStore_InsertAndGetByRun(t *testing.T) {
	store := NewClosedTradeStore()
	ctx := context.Background()

	trades := []*domain.ClosedTrade{
		{TradeID: "t2", RouteKey: "binance-BTC-USDT-1h", ClosedAt: 120_000, RealizedPnl: -5},
		{TradeID: "t1", RouteKey: "binance-BTC-USDT-1h", ClosedAt: 60_000, RealizedPnl: 10},
	}
	if err := store.InsertBulk(ctx, "run1", trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].TradeID != "t1" || got[1].TradeID != "t2" {
		t.Errorf("trades not ordered by closed_at: %s, %s", got[0].TradeID, got[1].TradeID)
	}
}

func TestClosedTradeStore_RunIsolation(t *testing.T) {
	store := NewClosedTradeStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "run1", []*domain.ClosedTrade{{TradeID: "t1"}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	// Same trade ID under a different run is a distinct record.
	if err := store.InsertBulk(ctx, "run2", []*domain.ClosedTrade{{TradeID: "t1"}}); err != nil {
		t.Fatalf("InsertBulk into second run failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run2")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 trade in run2, got %d", len(got))
	}
}

func TestClosedTradeStore_DuplicateTradeID(t *testing.T) {
	store := NewClosedTradeStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "run1", []*domain.ClosedTrade{{TradeID: "t1"}}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "run1", []*domain.ClosedTrade{{TradeID: "t1"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestClosedTradeStore_IntraBatchDuplicate(t *testing.T) {
	store := NewClosedTradeStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, "run1", []*domain.ClosedTrade{{TradeID: "t1"}, {TradeID: "t1"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed batch must insert nothing, got %d trades", len(got))
	}
}
