package domain

// ExecutionConfig holds the fill model parameters shared by all routes in
// a run. Percentages are fractions (0.001 = 0.1%).
type ExecutionConfig struct {
	FeeRate     float64 // fee as fraction of notional, deducted at fill time
	SlippagePct float64 // price impact applied against the taker direction
	Leverage    float64 // scales available notional; 0 means 1x
}

// RunConfig is the input contract for one backtest run.
type RunConfig struct {
	RunID           string
	Routes          []Route // trading routes, each dispatched to a strategy
	DataRoutes      []Route // aggregated but never dispatched
	StartMs         int64   // inclusive, base-resolution aligned
	EndMs           int64   // inclusive open time of the last base candle
	StartingBalance float64
	Execution       ExecutionConfig
}

// EquityPoint is one sample of the equity curve, taken once per base step.
type EquityPoint struct {
	Time   int64 // ms
	Equity float64
}

// TerminalPosition describes a position still open at run end, liquidated
// at the final base close for accounting.
type TerminalPosition struct {
	RouteKey         string
	Side             PositionSide
	Quantity         float64
	EntryPrice       float64
	LiquidationPrice float64
	UnrealizedPnl    float64
}

// RunSummary is the persisted digest of one finished run.
type RunSummary struct {
	RunID           string
	StartMs         int64
	EndMs           int64
	StartingBalance float64
	FinalBalance    float64
	TotalTrades     int
	NetProfit       float64
	NetProfitPct    float64
	WinRate         float64
	MaxDrawdown     float64
	SharpeRatio     float64
	CreatedAt       int64 // ms, wall clock at persist time
}

// RunResult is the output contract for one run.
type RunResult struct {
	RunID             string
	ClosedTrades      []*ClosedTrade
	EquityCurve       []EquityPoint
	Metrics           *Metrics
	TerminalPositions []TerminalPosition
	FinalBalance      float64
	StepsSimulated    int
}

// Summary digests the result for persistence. CreatedAt is left for the
// caller to stamp.
func (r *RunResult) Summary(cfg RunConfig) *RunSummary {
	s := &RunSummary{
		RunID:           r.RunID,
		StartMs:         cfg.StartMs,
		EndMs:           cfg.EndMs,
		StartingBalance: cfg.StartingBalance,
		FinalBalance:    r.FinalBalance,
	}
	if r.Metrics != nil {
		s.TotalTrades = r.Metrics.TotalTrades
		s.NetProfit = r.Metrics.NetProfit
		s.NetProfitPct = r.Metrics.NetProfitPct
		s.WinRate = r.Metrics.WinRate
		s.MaxDrawdown = r.Metrics.MaxDrawdown
		s.SharpeRatio = r.Metrics.SharpeRatio
	}
	return s
}
