package domain

import "fmt"

// Route binds one (exchange, symbol, timeframe) candle view to a strategy.
// Routes are fixed for the duration of one run.
type Route struct {
	Exchange  string
	Symbol    string
	Timeframe Timeframe
	Strategy  string // strategy binding name; empty for data-only routes
}

// Key returns the stable sort key used for deterministic dispatch order.
// Runs must produce identical results regardless of registration order.
func (r Route) Key() string {
	return fmt.Sprintf("%s-%s-%s", r.Exchange, r.Symbol, r.Timeframe)
}

// SeriesKey identifies the base-resolution candle series a route consumes.
func (r Route) SeriesKey() string {
	return r.Exchange + "-" + r.Symbol
}
