package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/candle"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/strategy"
)

func intPtr(v int) *int { return &v }

// flatCandles builds contiguous 1m candles where every price field equals
// the given close, so fills and mark-to-market are exact.
func flatCandles(closes []float64, startMs int64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			OpenTime: startMs + int64(i)*domain.BaseResolutionMs,
			Open:     c, High: c, Low: c, Close: c,
			Volume: 1,
		}
	}
	return out
}

func mustSeries(t *testing.T, exchange, symbol string, closes []float64) *candle.Series {
	t.Helper()
	s, err := candle.NewSeries(exchange, symbol, flatCandles(closes, 0))
	require.NoError(t, err)
	return s
}

func smaBindings() strategy.Bindings {
	return strategy.Bindings{
		"cross": {Type: strategy.TypeSMACross, FastPeriod: intPtr(2), SlowPeriod: intPtr(3)},
	}
}

func oneRouteConfig(balance float64, exec domain.ExecutionConfig) domain.RunConfig {
	return domain.RunConfig{
		Routes: []domain.Route{{
			Exchange: "binance", Symbol: "BTC-USDT",
			Timeframe: domain.Timeframe1m, Strategy: "cross",
		}},
		StartingBalance: balance,
		Execution:       exec,
	}
}

// roundTripCloses drives the 2/3 SMA cross through one full long round
// trip: cross up after the spike at index 4, entry fill at index 5's
// open, cross down at index 6, exit fill at index 7's open.
var roundTripCloses = []float64{10, 9, 8, 7, 12, 13, 6, 6, 6, 6}

func TestRunFullRoundTrip(t *testing.T) {
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
	}
	e, err := New(oneRouteConfig(1000, domain.ExecutionConfig{}), series, smaBindings())
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(roundTripCloses), result.StepsSimulated)
	assert.Len(t, result.EquityCurve, len(roundTripCloses))
	assert.Empty(t, result.TerminalPositions)

	require.Len(t, result.ClosedTrades, 1)
	trade := result.ClosedTrades[0]
	assert.Equal(t, domain.PositionLong, trade.Side)
	assert.InDelta(t, 13, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 6, trade.ExitPrice, 1e-9)
	assert.Equal(t, int64(5*domain.BaseResolutionMs), trade.OpenedAt)
	assert.Equal(t, int64(7*domain.BaseResolutionMs), trade.ClosedAt)

	// Sized from the full balance at the signal close of 12, filled at 13,
	// exited at 6.
	qty := 1000.0 / 12
	assert.InDelta(t, qty, trade.Quantity, 1e-9)
	assert.InDelta(t, (6-13)*qty, trade.RealizedPnl, 1e-9)
	assert.InDelta(t, 1000+(6-13)*qty, result.FinalBalance, 1e-9)

	// Equity before the entry fill is the untouched balance.
	assert.InDelta(t, 1000, result.EquityCurve[4].Equity, 1e-9)
	// While the position is open, equity marks to the base close.
	assert.InDelta(t, 1000+(6-13)*qty, result.EquityCurve[6].Equity, 1e-9)
}

func TestRunChargesFeesAtFillTime(t *testing.T) {
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
	}
	exec := domain.ExecutionConfig{FeeRate: 0.001}
	e, err := New(oneRouteConfig(1000, exec), series, smaBindings())
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	qty := 1000.0 / 12
	entryFee := qty * 13 * 0.001
	exitFee := qty * 6 * 0.001
	gross := (6 - 13) * qty

	require.Len(t, result.ClosedTrades, 1)
	assert.InDelta(t, entryFee+exitFee, result.ClosedTrades[0].Fees, 1e-9)
	assert.InDelta(t, gross-entryFee-exitFee, result.ClosedTrades[0].RealizedPnl, 1e-9)
	assert.InDelta(t, 1000+gross-entryFee-exitFee, result.FinalBalance, 1e-9)
}

func TestRunAppliesSlippageToMarketFills(t *testing.T) {
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
	}
	exec := domain.ExecutionConfig{SlippagePct: 0.01}
	e, err := New(oneRouteConfig(1000, exec), series, smaBindings())
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.ClosedTrades, 1)
	trade := result.ClosedTrades[0]
	assert.InDelta(t, 13*1.01, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 6*0.99, trade.ExitPrice, 1e-9)
}

func TestRunLiquidatesOpenPositionAtEnd(t *testing.T) {
	// Cross up with no later cross down: the long rides to the end.
	closes := []float64{10, 9, 8, 7, 12, 13, 14, 15}
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", closes),
	}
	e, err := New(oneRouteConfig(1000, domain.ExecutionConfig{}), series, smaBindings())
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.ClosedTrades)
	require.Len(t, result.TerminalPositions, 1)

	qty := 1000.0 / 12
	tp := result.TerminalPositions[0]
	assert.Equal(t, domain.PositionLong, tp.Side)
	assert.InDelta(t, qty, tp.Quantity, 1e-9)
	assert.InDelta(t, 13, tp.EntryPrice, 1e-9)
	assert.InDelta(t, 15, tp.LiquidationPrice, 1e-9)
	assert.InDelta(t, (15-13)*qty, tp.UnrealizedPnl, 1e-9)
	assert.InDelta(t, 1000+(15-13)*qty, result.FinalBalance, 1e-9)
}

func TestRunIsDeterministic(t *testing.T) {
	build := func() *Engine {
		series := map[string]*candle.Series{
			"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
		}
		e, err := New(oneRouteConfig(1000, domain.ExecutionConfig{FeeRate: 0.001, SlippagePct: 0.001}), series, smaBindings())
		require.NoError(t, err)
		return e
	}

	first, err := build().Run(context.Background())
	require.NoError(t, err)
	second, err := build().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first, second)
}

func TestRunIDDerivedFromConfig(t *testing.T) {
	series := func() map[string]*candle.Series {
		return map[string]*candle.Series{
			"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
		}
	}

	a, err := New(oneRouteConfig(1000, domain.ExecutionConfig{}), series(), smaBindings())
	require.NoError(t, err)
	b, err := New(oneRouteConfig(1000, domain.ExecutionConfig{}), series(), smaBindings())
	require.NoError(t, err)
	c, err := New(oneRouteConfig(2000, domain.ExecutionConfig{}), series(), smaBindings())
	require.NoError(t, err)

	assert.Equal(t, a.RunID(), b.RunID())
	assert.NotEqual(t, a.RunID(), c.RunID())
}

func TestRunAbortsOnCancelledContext(t *testing.T) {
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
	}
	e, err := New(oneRouteConfig(1000, domain.ExecutionConfig{}), series, smaBindings())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewConfigValidation(t *testing.T) {
	goodSeries := func() map[string]*candle.Series {
		return map[string]*candle.Series{
			"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
		}
	}
	route := domain.Route{
		Exchange: "binance", Symbol: "BTC-USDT",
		Timeframe: domain.Timeframe1m, Strategy: "cross",
	}

	t.Run("no routes", func(t *testing.T) {
		cfg := domain.RunConfig{StartingBalance: 1000}
		_, err := New(cfg, goodSeries(), smaBindings())
		assert.ErrorIs(t, err, ErrNoRoutes)
	})

	t.Run("bad balance", func(t *testing.T) {
		cfg := domain.RunConfig{Routes: []domain.Route{route}}
		_, err := New(cfg, goodSeries(), smaBindings())
		assert.ErrorIs(t, err, ErrBadBalance)
	})

	t.Run("missing series", func(t *testing.T) {
		cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
		_, err := New(cfg, map[string]*candle.Series{}, smaBindings())
		assert.ErrorIs(t, err, ErrMissingSeries)
	})

	t.Run("missing binding", func(t *testing.T) {
		cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
		_, err := New(cfg, goodSeries(), strategy.Bindings{})
		assert.ErrorIs(t, err, ErrMissingBinding)
	})

	t.Run("unsupported timeframe", func(t *testing.T) {
		bad := route
		bad.Timeframe = "7m"
		cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
		cfg.Routes = []domain.Route{bad}
		_, err := New(cfg, goodSeries(), smaBindings())
		assert.ErrorIs(t, err, domain.ErrUnsupportedTimeframe)
	})

	t.Run("duplicate route", func(t *testing.T) {
		cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
		cfg.Routes = append(cfg.Routes, route)
		_, err := New(cfg, goodSeries(), smaBindings())
		assert.ErrorIs(t, err, ErrDuplicateRoute)
	})

	t.Run("range outside series", func(t *testing.T) {
		cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
		cfg.StartMs = 0
		cfg.EndMs = int64(len(roundTripCloses)+5) * domain.BaseResolutionMs
		_, err := New(cfg, goodSeries(), smaBindings())
		assert.ErrorIs(t, err, ErrRangeOutsideSeries)
	})

	t.Run("unaligned bounds", func(t *testing.T) {
		cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
		cfg.StartMs = 500
		cfg.EndMs = 2 * domain.BaseResolutionMs
		_, err := New(cfg, goodSeries(), smaBindings())
		assert.ErrorIs(t, err, ErrBadTimeRange)
	})
}

func TestExplicitWindowRestrictsRun(t *testing.T) {
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
	}
	cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
	cfg.StartMs = 2 * domain.BaseResolutionMs
	cfg.EndMs = 5 * domain.BaseResolutionMs

	e, err := New(cfg, series, smaBindings())
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.StepsSimulated)
	require.Len(t, result.EquityCurve, 4)
	assert.Equal(t, int64(2*domain.BaseResolutionMs), result.EquityCurve[0].Time)
	assert.Equal(t, int64(5*domain.BaseResolutionMs), result.EquityCurve[3].Time)
}

func TestWindowDefaultsToSeriesIntersection(t *testing.T) {
	// BTC covers steps 0..9, ETH covers 2..9; the run must confine itself
	// to the overlap.
	btc := mustSeries(t, "binance", "BTC-USDT", roundTripCloses)
	eth, err := candle.NewSeries("binance", "ETH-USDT",
		flatCandles([]float64{5, 5, 5, 5, 5, 5, 5, 5}, 2*domain.BaseResolutionMs))
	require.NoError(t, err)

	cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
	cfg.DataRoutes = []domain.Route{{
		Exchange: "binance", Symbol: "ETH-USDT", Timeframe: domain.Timeframe1m,
	}}
	series := map[string]*candle.Series{
		"binance-BTC-USDT": btc,
		"binance-ETH-USDT": eth,
	}

	e, err := New(cfg, series, smaBindings())
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, result.StepsSimulated)
	assert.Equal(t, int64(2*domain.BaseResolutionMs), result.EquityCurve[0].Time)
}

func TestDataRouteHistoryVisibleToStrategies(t *testing.T) {
	cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
	cfg.DataRoutes = []domain.Route{{
		Exchange: "binance", Symbol: "ETH-USDT", Timeframe: domain.Timeframe1m,
	}}
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", roundTripCloses),
		"binance-ETH-USDT": mustSeries(t, "binance", "ETH-USDT", []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}),
	}

	e, err := New(cfg, series, smaBindings())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	rs := e.routes[0]
	view := &marketView{engine: e, rs: rs}

	ethHist, err := view.CandlesFor("binance", "ETH-USDT", domain.Timeframe1m)
	require.NoError(t, err)
	assert.Len(t, ethHist, 10)

	_, err = view.CandlesFor("binance", "SOL-USDT", domain.Timeframe1m)
	assert.Error(t, err)
}

func TestHigherTimeframeRouteSeesOnlyClosedCandles(t *testing.T) {
	// 12 base minutes on a 5m route: exactly two 5m candles close; the
	// partial third window is never visible to the strategy.
	closes := []float64{10, 9, 8, 7, 12, 13, 6, 6, 6, 6, 7, 8}
	series := map[string]*candle.Series{
		"binance-BTC-USDT": mustSeries(t, "binance", "BTC-USDT", closes),
	}
	cfg := oneRouteConfig(1000, domain.ExecutionConfig{})
	cfg.Routes[0].Timeframe = domain.Timeframe5m

	e, err := New(cfg, series, smaBindings())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	hist := e.histories["binance-BTC-USDT-5m"]
	require.Len(t, hist, 2)
	assert.Equal(t, int64(0), hist[0].OpenTime)
	assert.Equal(t, int64(5*domain.BaseResolutionMs), hist[1].OpenTime)
	// Derived fields aggregate the five constituents.
	assert.InDelta(t, 10, hist[0].Open, 1e-12)
	assert.InDelta(t, 12, hist[0].Close, 1e-12)
	assert.InDelta(t, 5, hist[0].Volume, 1e-12)
}

func TestStrategyErrorWrapsCause(t *testing.T) {
	cause := assert.AnError
	err := &StrategyError{
		RouteKey: "binance-BTC-USDT-1m",
		Hook:     "Before",
		Step:     7,
		Time:     7 * domain.BaseResolutionMs,
		Err:      cause,
	}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Before")
	assert.Contains(t, err.Error(), "binance-BTC-USDT-1m")
}
