package engine

import (
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/strategy"
)

var (
	_ strategy.MarketView = (*marketView)(nil)
	_ strategy.Broker     = (*broker)(nil)
)

// marketView exposes the engine's closed-candle state to one route. It
// holds no data of its own, so a strategy can never observe anything the
// run loop has not published yet.
type marketView struct {
	engine *Engine
	rs     *routeState
}

func (v *marketView) Candles() []domain.Candle {
	return v.engine.histories[v.rs.histKey]
}

func (v *marketView) CandlesFor(exchange, symbol string, tf domain.Timeframe) ([]domain.Candle, error) {
	hk := histKey(exchange, symbol, tf)
	hist, ok := v.engine.histories[hk]
	if !ok {
		return nil, fmt.Errorf("no history for %s-%s %s: not covered by any route", exchange, symbol, tf)
	}
	return hist, nil
}

func (v *marketView) Position() domain.Position {
	return v.rs.ledger.Position()
}

func (v *marketView) Balance() float64 {
	return v.engine.balance
}

func (v *marketView) Leverage() float64 {
	return v.engine.cfg.Execution.Leverage
}

func (v *marketView) Step() int {
	return v.engine.step
}

func (v *marketView) Now() int64 {
	return v.engine.startMs + int64(v.engine.step)*domain.BaseResolutionMs
}

// broker forwards intents to the matching engine. A rejected intent is a
// no-op: it is logged, counted, and returned to the strategy, but the run
// carries on.
type broker struct {
	engine *Engine
	rs     *routeState
}

func (b *broker) Submit(intent domain.OrderIntent) ([]*domain.Order, error) {
	now := b.engine.startMs + int64(b.engine.step)*domain.BaseResolutionMs
	orders, err := b.engine.matcher.Submit(b.rs.route.Key(), intent, now)
	if err != nil {
		b.engine.rejectedIntents++
		observability.RecordIntentRejected()
		b.engine.log.Warn().
			Str("route", b.rs.route.Key()).
			Str("side", string(intent.Side)).
			Str("kind", string(intent.Kind)).
			Err(err).
			Msg("order intent rejected")
		return nil, err
	}
	return orders, nil
}

func (b *broker) Cancel(orderID string) error {
	return b.engine.matcher.Cancel(b.rs.route.Key(), orderID)
}

func (b *broker) CancelAll() {
	b.engine.matcher.CancelAll(b.rs.route.Key())
}

func (b *broker) OpenOrders() []*domain.Order {
	return b.engine.matcher.OpenOrders(b.rs.route.Key())
}
