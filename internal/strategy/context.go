package strategy

import "backtest-lab/internal/domain"

// MarketView is the read surface a strategy sees: closed candles only,
// scoped to the current run. The engine guarantees the route's own
// still-open candle is never visible.
type MarketView interface {
	// Candles returns the route's own closed-candle history, oldest first.
	Candles() []domain.Candle

	// CandlesFor returns another route's closed-candle history for
	// cross-route signals. Only routes registered for the run resolve.
	CandlesFor(exchange, symbol string, tf domain.Timeframe) ([]domain.Candle, error)

	// Position returns the route's current position.
	Position() domain.Position

	// Balance returns the account balance (realized, fees deducted).
	Balance() float64

	// Leverage returns the run's leverage multiplier; 0 means 1x.
	Leverage() float64

	// Step returns the current base-resolution step index.
	Step() int

	// Now returns the open time (ms) of the newest closed base candle.
	Now() int64
}

// Broker is the write surface: strategies influence the simulation only
// by submitting and cancelling order intents.
type Broker interface {
	// Submit queues an intent. Malformed intents return an error and are
	// dropped with a warning; they never abort the run.
	Submit(intent domain.OrderIntent) ([]*domain.Order, error)

	// Cancel cancels a previously submitted order by ID.
	Cancel(orderID string) error

	// CancelAll cancels every active order for the route.
	CancelAll()

	// OpenOrders returns the route's active orders.
	OpenOrders() []*domain.Order
}

// Context is what every hook receives: the route identity, the read and
// write surfaces, and a per-step memo cache. One context exists per route
// per run; nothing in it is shared across runs.
type Context struct {
	MarketView
	Broker

	route domain.Route
	cache *Cache
}

// NewContext assembles a context for one route.
func NewContext(route domain.Route, view MarketView, broker Broker) *Context {
	return &Context{
		MarketView: view,
		Broker:     broker,
		route:      route,
		cache:      NewCache(),
	}
}

// Route returns the route this context is scoped to.
func (c *Context) Route() domain.Route {
	return c.route
}

// Cache returns the per-step memo cache, already advanced to the current
// step by the runtime.
func (c *Context) Cache() *Cache {
	c.cache.advance(c.Step())
	return c.cache
}

// SizeForBalancePct returns the quantity purchasable with the given
// fraction of balance at price, scaled by the run's leverage.
func (c *Context) SizeForBalancePct(pct, price float64) float64 {
	if price <= 0 {
		return 0
	}
	lev := c.Leverage()
	if lev <= 0 {
		lev = 1
	}
	return c.Balance() * pct * lev / price
}
