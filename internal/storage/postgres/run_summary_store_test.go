package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func TestRunSummaryStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunSummaryStore(pool)
	ctx := context.Background()

	sum := &domain.RunSummary{
		RunID:           "run1",
		StartMs:         0,
		EndMs:           86_340_000,
		StartingBalance: 10_000,
		FinalBalance:    10_420,
		TotalTrades:     7,
		NetProfit:       420,
		NetProfitPct:    4.2,
		WinRate:         0.57,
		MaxDrawdown:     0.031,
		SharpeRatio:     1.9,
		CreatedAt:       1_756_684_800_000,
	}
	require.NoError(t, store.Insert(ctx, sum))

	got, err := store.GetByID(ctx, "run1")
	require.NoError(t, err)
	assert.Equal(t, sum, got)
}

func TestRunSummaryStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunSummaryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.RunSummary{RunID: "run1"}))
	assert.ErrorIs(t, store.Insert(ctx, &domain.RunSummary{RunID: "run1"}), storage.ErrDuplicateKey)
}

func TestRunSummaryStore_GetAllOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunSummaryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.RunSummary{RunID: "b", CreatedAt: 2000}))
	require.NoError(t, store.Insert(ctx, &domain.RunSummary{RunID: "a", CreatedAt: 1000}))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].RunID)
	assert.Equal(t, "b", got[1].RunID)
}

func TestRunSummaryStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunSummaryStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
