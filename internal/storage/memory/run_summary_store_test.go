package memory

import (
	"context"
	"errors"
	"testing"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func TestRunSummaryStore_InsertAndGet(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	sum := &domain.RunSummary{
		RunID:           "run1",
		StartingBalance: 10_000,
		FinalBalance:    10_500,
		TotalTrades:     12,
		NetProfit:       500,
		CreatedAt:       1_700_000_000_000,
	}
	if err := store.Insert(ctx, sum); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.NetProfit != 500 {
		t.Errorf("NetProfit mismatch: got %f", got.NetProfit)
	}
}

func TestRunSummaryStore_DuplicateKey(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.RunSummary{RunID: "run1"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, &domain.RunSummary{RunID: "run1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunSummaryStore_GetAllOrdered(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	for _, sum := range []*domain.RunSummary{
		{RunID: "b", CreatedAt: 2000},
		{RunID: "a", CreatedAt: 1000},
		{RunID: "c", CreatedAt: 1000},
	} {
		if err := store.Insert(ctx, sum); err != nil {
			t.Fatalf("Insert %s failed: %v", sum.RunID, err)
		}
	}

	got, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(got))
	}
	if got[0].RunID != "a" || got[1].RunID != "c" || got[2].RunID != "b" {
		t.Errorf("unexpected order: %s, %s, %s", got[0].RunID, got[1].RunID, got[2].RunID)
	}
}

func TestRunSummaryStore_NotFound(t *testing.T) {
	store := NewRunSummaryStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
