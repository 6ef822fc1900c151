package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
)

const validYAML = `
run:
  starting_balance: 10000
  fee_rate: 0.001
  slippage_pct: 0.0005
routes:
  - exchange: binance
    symbol: BTC-USDT
    timeframe: 1h
    strategy: sma-fast
data_routes:
  - exchange: binance
    symbol: ETH-USDT
    timeframe: 4h
strategies:
  sma-fast:
    type: SMA_CROSS
    fast_period: 9
    slow_period: 21
    balance_pct: 0.5
data:
  dir: ./data
storage:
  postgres_dsn: postgres://test@localhost/backtest
`

func TestParseValid(t *testing.T) {
	f, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	cfg := f.RunConfig()
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "binance", cfg.Routes[0].Exchange)
	assert.Equal(t, domain.Timeframe1h, cfg.Routes[0].Timeframe)
	assert.Equal(t, "sma-fast", cfg.Routes[0].Strategy)
	require.Len(t, cfg.DataRoutes, 1)
	assert.InDelta(t, 0.001, cfg.Execution.FeeRate, 1e-12)
	assert.InDelta(t, 10_000, cfg.StartingBalance, 1e-12)

	bindings := f.Bindings()
	require.Contains(t, bindings, "sma-fast")
	require.NotNil(t, bindings["sma-fast"].FastPeriod)
	assert.Equal(t, 9, *bindings["sma-fast"].FastPeriod)

	assert.Equal(t, "./data", f.Data.Dir)
	assert.Equal(t, "postgres://test@localhost/backtest", f.Storage.PostgresDSN)
}

func TestParseRejectsUnknownTimeframe(t *testing.T) {
	bad := `
run:
  starting_balance: 10000
routes:
  - exchange: binance
    symbol: BTC-USDT
    timeframe: 7m
    strategy: s
strategies:
  s:
    type: SMA_CROSS
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedTimeframe)
}

func TestParseRejectsUnboundStrategy(t *testing.T) {
	bad := `
run:
  starting_balance: 10000
routes:
  - exchange: binance
    symbol: BTC-USDT
    timeframe: 1h
    strategy: missing
strategies:
  other:
    type: SMA_CROSS
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy binding")
}

func TestParseRejectsStrategyOnDataRoute(t *testing.T) {
	bad := `
run:
  starting_balance: 10000
routes:
  - exchange: binance
    symbol: BTC-USDT
    timeframe: 1h
    strategy: s
data_routes:
  - exchange: binance
    symbol: ETH-USDT
    timeframe: 1h
    strategy: s
strategies:
  s:
    type: SMA_CROSS
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data route must not name a strategy")
}

func TestParseRejectsMissingBalance(t *testing.T) {
	bad := `
run:
  fee_rate: 0.001
routes:
  - exchange: binance
    symbol: BTC-USDT
    timeframe: 1h
    strategy: s
strategies:
  s:
    type: SMA_CROSS
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}
