package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func TestEquityCurveStore_InsertAndGetByRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEquityCurveStore(conn)
	ctx := context.Background()

	points := []domain.EquityPoint{
		{Time: 0, Equity: 10_000},
		{Time: 60_000, Equity: 10_020},
		{Time: 120_000, Equity: 9_990},
	}
	require.NoError(t, store.InsertBulk(ctx, "run1", points))

	got, err := store.GetByRun(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, points, got)
}

func TestEquityCurveStore_RunWrittenOnce(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEquityCurveStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run1", []domain.EquityPoint{{Time: 0, Equity: 10_000}}))

	err := store.InsertBulk(ctx, "run1", []domain.EquityPoint{{Time: 60_000, Equity: 10_050}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestEquityCurveStore_EmptyRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEquityCurveStore(conn)

	got, err := store.GetByRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
