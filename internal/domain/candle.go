package domain

// Candle represents one immutable OHLCV record.
// OpenTime is unique and strictly increasing within a series.
type Candle struct {
	OpenTime int64 // Unix timestamp in milliseconds
	Open     float64
	Close    float64
	High     float64
	Low      float64
	Volume   float64
}

// BaseResolutionMs is the finest candle interval the engine replays.
// All other timeframes are derived from it.
const BaseResolutionMs int64 = 60_000

// Bullish reports whether the candle closed at or above its open.
func (c Candle) Bullish() bool {
	return c.Close >= c.Open
}

// WellFormed reports whether the OHLC values satisfy
// high >= max(open, close) >= min(open, close) >= low.
func (c Candle) WellFormed() bool {
	hi := c.Open
	lo := c.Close
	if c.Close > hi {
		hi = c.Close
	}
	if c.Open < lo {
		lo = c.Open
	}
	return c.High >= hi && c.Low <= lo && c.Volume >= 0
}
