package domain

// Side represents order direction.
type Side string

// Side constants.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind represents the execution type of an order.
type OrderKind string

// Order kind constants.
const (
	OrderKindMarket    OrderKind = "market"
	OrderKindLimit     OrderKind = "limit"
	OrderKindStop      OrderKind = "stop"
	OrderKindStopLimit OrderKind = "stop_limit"
)

// OrderRole classifies an order's purpose within a position. The matching
// engine resolves stop-loss orders before take-profit orders when one
// candle's range would trigger both, and filling either cancels its
// sibling via the OCO group.
type OrderRole string

// Order role constants.
const (
	OrderRoleEntry      OrderRole = "entry"
	OrderRoleStopLoss   OrderRole = "stop_loss"
	OrderRoleTakeProfit OrderRole = "take_profit"
)

// OrderStatus represents order lifecycle state.
type OrderStatus string

// Order status constants.
const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusTriggered       OrderStatus = "triggered"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// OrderLeg is one (quantity, price) slice of an intent. Legs fill
// independently and are volume-weighted into the position entry price.
type OrderLeg struct {
	Quantity float64
	Price    float64 // limit price for limit/stop-limit legs; ignored for market/stop
}

// OrderIntent is what a strategy emits. It is not yet a commitment; the
// matching engine validates and queues it.
type OrderIntent struct {
	Side         Side
	Kind         OrderKind
	Role         OrderRole
	Quantity     float64    // used when Legs is empty
	Legs         []OrderLeg // optional explicit split into sub-orders
	TriggerPrice float64    // stop / stop-limit
	LimitPrice   float64    // limit / stop-limit
	OCOGroup     string     // orders sharing a group cancel each other on fill
}

// Order is a submitted intent with lifecycle state.
type Order struct {
	ID           string
	RouteKey     string
	Side         Side
	Kind         OrderKind
	Role         OrderRole
	Quantity     float64
	TriggerPrice float64
	LimitPrice   float64
	OCOGroup     string
	Status       OrderStatus
	SubmittedAt  int64 // open time of the candle visible when submitted
	FilledQty    float64
}

// Active reports whether the order can still produce fills.
func (o *Order) Active() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusTriggered, OrderStatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// Fill is one execution produced by the matching engine. Fills are the only
// inputs that mutate position state.
type Fill struct {
	OrderID  string
	RouteKey string
	Side     Side
	Role     OrderRole
	Quantity float64
	Price    float64 // includes slippage
	Fee      float64 // fee on notional, already computed
	Time     int64   // open time of the candle the fill resolved against
}
