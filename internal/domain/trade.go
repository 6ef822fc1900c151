package domain

// ClosedTrade is the immutable record created when a position returns to
// flat. The trade ID is a deterministic hash so identical runs produce
// byte-identical trade logs.
type ClosedTrade struct {
	TradeID    string
	RouteKey   string
	Exchange   string
	Symbol     string
	Timeframe  Timeframe
	StrategyID string

	Side        PositionSide
	Quantity    float64 // peak quantity held over the round trip
	EntryPrice  float64 // volume-weighted
	ExitPrice   float64 // volume-weighted across reducing fills
	OpenedAt    int64   // ms
	ClosedAt    int64   // ms
	RealizedPnl float64 // net of fees
	Fees        float64
}

// Win reports whether the trade realized a profit.
func (t *ClosedTrade) Win() bool {
	return t.RealizedPnl > 0
}

// HoldingDurationMs returns how long the round trip was held.
func (t *ClosedTrade) HoldingDurationMs() int64 {
	return t.ClosedAt - t.OpenedAt
}
