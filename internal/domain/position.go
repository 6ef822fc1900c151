package domain

// PositionSide represents the direction of an open position.
type PositionSide string

// Position side constants. Flat is a valid state, not absence.
const (
	PositionFlat  PositionSide = "flat"
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// Position is the per-route position state. Exactly one exists per route
// at any time; quantity is always >= 0 with side tracked separately.
type Position struct {
	RouteKey    string
	Side        PositionSide
	Quantity    float64
	EntryPrice  float64 // volume-weighted across fills
	OpenedAt    int64   // ms
	RealizedPnl float64 // realized on partial reductions of the open position
	Fees        float64 // fees accumulated over the position's lifetime
}

// Open reports whether the position holds any quantity.
func (p *Position) Open() bool {
	return p.Side != PositionFlat && p.Quantity > 0
}

// UnrealizedPnl marks the position against price.
func (p *Position) UnrealizedPnl(price float64) float64 {
	if !p.Open() {
		return 0
	}
	diff := price - p.EntryPrice
	if p.Side == PositionShort {
		diff = -diff
	}
	return diff * p.Quantity
}
