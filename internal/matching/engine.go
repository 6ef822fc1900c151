// Package matching resolves queued order intents against candle price
// paths using deterministic, config-free rules. It has no knowledge of
// strategies or positions; it consumes intents and emits fills.
package matching

import (
	"errors"
	"fmt"
	"sort"

	"backtest-lab/internal/domain"
)

// Intent validation errors. A malformed intent is rejected at queue time
// and reported back to the caller as a no-op; it never aborts the run.
var (
	ErrInvalidQuantity = errors.New("order intent quantity must be positive")
	ErrMissingTrigger  = errors.New("stop order intent requires a trigger price")
	ErrMissingLimit    = errors.New("limit order intent requires a limit price")
	ErrUnknownOrder    = errors.New("unknown order id")
	ErrUnknownKind     = errors.New("unknown order kind")
)

// Engine queues orders per route and resolves them against subsequent
// candles. All state is per-run; the engine is never shared across runs.
type Engine struct {
	exec   domain.ExecutionConfig
	orders map[string][]*domain.Order // route key -> orders in submission order
	seq    int
}

// NewEngine creates a matching engine with the given execution model.
func NewEngine(exec domain.ExecutionConfig) *Engine {
	return &Engine{
		exec:   exec,
		orders: make(map[string][]*domain.Order),
	}
}

// Submit validates an intent and queues it as one order per leg. Intents
// without explicit legs become a single order. Orders never resolve
// against the candle visible at submission time; the first eligible
// candle is the next one fed to Resolve.
func (e *Engine) Submit(routeKey string, intent domain.OrderIntent, at int64) ([]*domain.Order, error) {
	if err := validateIntent(intent); err != nil {
		return nil, err
	}

	legs := intent.Legs
	if len(legs) == 0 {
		legs = []domain.OrderLeg{{Quantity: intent.Quantity, Price: intent.LimitPrice}}
	}

	created := make([]*domain.Order, 0, len(legs))
	for _, leg := range legs {
		e.seq++
		o := &domain.Order{
			ID:           fmt.Sprintf("%s#%05d", routeKey, e.seq),
			RouteKey:     routeKey,
			Side:         intent.Side,
			Kind:         intent.Kind,
			Role:         intent.Role,
			Quantity:     leg.Quantity,
			TriggerPrice: intent.TriggerPrice,
			LimitPrice:   leg.Price,
			OCOGroup:     intent.OCOGroup,
			Status:       domain.OrderStatusPending,
			SubmittedAt:  at,
		}
		e.orders[routeKey] = append(e.orders[routeKey], o)
		created = append(created, o)
	}
	return created, nil
}

// Cancel marks an order cancelled if it is still active.
func (e *Engine) Cancel(routeKey, orderID string) error {
	for _, o := range e.orders[routeKey] {
		if o.ID == orderID {
			if o.Active() {
				o.Status = domain.OrderStatusCancelled
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
}

// CancelAll cancels every active order for a route.
func (e *Engine) CancelAll(routeKey string) {
	for _, o := range e.orders[routeKey] {
		if o.Active() {
			o.Status = domain.OrderStatusCancelled
		}
	}
}

// OpenOrders returns the route's active orders in submission order.
func (e *Engine) OpenOrders(routeKey string) []*domain.Order {
	var out []*domain.Order
	for _, o := range e.orders[routeKey] {
		if o.Active() {
			out = append(out, o)
		}
	}
	return out
}

// Resolve matches the route's active orders against one base candle and
// returns fills in resolution order. Resolution order is fixed: stop-loss
// orders first, then entries, then take-profits, submission order within
// a class. Resolving the worse-case order first is the conservative
// tie-break for candles whose range would trigger both a stop-loss and a
// take-profit; the result depends only on order attributes, never on
// submission data order.
func (e *Engine) Resolve(routeKey string, c domain.Candle) []domain.Fill {
	active := e.OpenOrders(routeKey)
	if len(active) == 0 {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		ri, rj := roleRank(active[i].Role), roleRank(active[j].Role)
		if ri != rj {
			return ri < rj
		}
		return active[i].ID < active[j].ID
	})

	var fills []domain.Fill
	for _, o := range active {
		if !o.Active() {
			continue // cancelled by an earlier OCO fill in this candle
		}
		price, ok := e.fillPrice(o, c)
		if !ok {
			continue
		}

		qty := o.Quantity - o.FilledQty
		o.FilledQty = o.Quantity
		o.Status = domain.OrderStatusFilled

		fills = append(fills, domain.Fill{
			OrderID:  o.ID,
			RouteKey: routeKey,
			Side:     o.Side,
			Role:     o.Role,
			Quantity: qty,
			Price:    price,
			Fee:      qty * price * e.exec.FeeRate,
			Time:     c.OpenTime,
		})

		if o.OCOGroup != "" {
			e.cancelGroup(routeKey, o.OCOGroup, o.ID)
		}
	}
	return fills
}

// fillPrice decides whether the order fills against this candle and at
// what price. Slippage applies to market executions and to stop orders
// once triggered (they fill per market rules from the crossing point);
// plain limit fills take no slippage.
func (e *Engine) fillPrice(o *domain.Order, c domain.Candle) (float64, bool) {
	switch o.Kind {
	case domain.OrderKindMarket:
		return e.slip(c.Open, o.Side), true

	case domain.OrderKindLimit:
		if !limitCrossed(o.Side, o.LimitPrice, c) {
			return 0, false
		}
		return limitFillPrice(o.Side, o.LimitPrice, c.Open), true

	case domain.OrderKindStop:
		crossing, ok := stopCrossing(o.Side, o.TriggerPrice, c)
		if !ok {
			return 0, false
		}
		return e.slip(crossing, o.Side), true

	case domain.OrderKindStopLimit:
		if o.Status == domain.OrderStatusPending {
			if _, ok := stopCrossing(o.Side, o.TriggerPrice, c); !ok {
				return 0, false
			}
			o.Status = domain.OrderStatusTriggered
			// Marketable on the triggering candle only when the limit sits
			// at or beyond the trigger in the taker's favor; the fill price
			// is the limit itself, the conservative end of the crossed
			// range. Otherwise it rests as a live limit order.
			if marketableOnTrigger(o.Side, o.TriggerPrice, o.LimitPrice) {
				return o.LimitPrice, true
			}
			return 0, false
		}
		if !limitCrossed(o.Side, o.LimitPrice, c) {
			return 0, false
		}
		return limitFillPrice(o.Side, o.LimitPrice, c.Open), true
	}
	return 0, false
}

// slip moves price against the taker direction.
func (e *Engine) slip(price float64, side domain.Side) float64 {
	if side == domain.SideBuy {
		return price * (1 + e.exec.SlippagePct)
	}
	return price * (1 - e.exec.SlippagePct)
}

func (e *Engine) cancelGroup(routeKey, group, exceptID string) {
	for _, o := range e.orders[routeKey] {
		if o.OCOGroup == group && o.ID != exceptID && o.Active() {
			o.Status = domain.OrderStatusCancelled
		}
	}
}

// roleRank orders resolution classes: stop-loss, entry, take-profit.
func roleRank(r domain.OrderRole) int {
	switch r {
	case domain.OrderRoleStopLoss:
		return 0
	case domain.OrderRoleTakeProfit:
		return 2
	default:
		return 1
	}
}

// limitCrossed reports whether the candle's range reaches the limit price.
func limitCrossed(side domain.Side, limit float64, c domain.Candle) bool {
	if side == domain.SideBuy {
		return c.Low <= limit
	}
	return c.High >= limit
}

// limitFillPrice fills at the limit price or better: an open already
// through the limit gives the taker the open.
func limitFillPrice(side domain.Side, limit, open float64) float64 {
	if side == domain.SideBuy {
		if open < limit {
			return open
		}
		return limit
	}
	if open > limit {
		return open
	}
	return limit
}

// stopCrossing reports whether the candle crosses the trigger and returns
// the crossing price: the open when the candle gaps through the trigger,
// the trigger itself otherwise. A trigger strictly inside the candle's
// range never fills at the open.
func stopCrossing(side domain.Side, trigger float64, c domain.Candle) (float64, bool) {
	if side == domain.SideBuy {
		if c.High < trigger {
			return 0, false
		}
		if c.Open >= trigger {
			return c.Open, true
		}
		return trigger, true
	}
	if c.Low > trigger {
		return 0, false
	}
	if c.Open <= trigger {
		return c.Open, true
	}
	return trigger, true
}

// marketableOnTrigger reports whether a just-triggered stop-limit can fill
// inside its triggering candle.
func marketableOnTrigger(side domain.Side, trigger, limit float64) bool {
	if side == domain.SideBuy {
		return limit >= trigger
	}
	return limit <= trigger
}

func validateIntent(intent domain.OrderIntent) error {
	switch intent.Kind {
	case domain.OrderKindMarket, domain.OrderKindLimit, domain.OrderKindStop, domain.OrderKindStopLimit:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, intent.Kind)
	}

	if len(intent.Legs) == 0 {
		if intent.Quantity <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidQuantity, intent.Quantity)
		}
	} else {
		for i, leg := range intent.Legs {
			if leg.Quantity <= 0 {
				return fmt.Errorf("%w: leg %d quantity %v", ErrInvalidQuantity, i, leg.Quantity)
			}
			if needsLimit(intent.Kind) && leg.Price <= 0 {
				return fmt.Errorf("%w: leg %d", ErrMissingLimit, i)
			}
		}
	}

	if needsLimit(intent.Kind) && len(intent.Legs) == 0 && intent.LimitPrice <= 0 {
		return ErrMissingLimit
	}
	if (intent.Kind == domain.OrderKindStop || intent.Kind == domain.OrderKindStopLimit) && intent.TriggerPrice <= 0 {
		return ErrMissingTrigger
	}
	return nil
}

func needsLimit(kind domain.OrderKind) bool {
	return kind == domain.OrderKindLimit || kind == domain.OrderKindStopLimit
}
