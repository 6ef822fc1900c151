// Package ledger holds per-route position state. Positions move through
// flat / open-long / open-short exclusively on matched fills; strategy
// code never mutates them directly.
package ledger

import (
	"errors"
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
)

// ErrZeroQuantityFill guards against fills the matching engine should
// never emit.
var ErrZeroQuantityFill = errors.New("fill quantity must be positive")

// TransitionKind classifies what a fill did to the position.
type TransitionKind string

// Transition kinds, in the order lifecycle hooks fire.
const (
	TransitionOpened    TransitionKind = "opened"
	TransitionIncreased TransitionKind = "increased"
	TransitionReduced   TransitionKind = "reduced"
	TransitionClosed    TransitionKind = "closed"
)

// Transition is one state change produced by applying a fill. A fill that
// reduces past flat produces two transitions: closed then opened.
type Transition struct {
	Kind          TransitionKind
	RealizedDelta float64             // gross pnl realized by this transition
	Trade         *domain.ClosedTrade // set for TransitionClosed
}

// Ledger is the position state machine for one route.
type Ledger struct {
	route      domain.Route
	strategyID string
	pos        domain.Position

	// round-trip accumulation for the closed-trade record
	peakQty      float64
	exitQty      float64
	exitNotional float64
}

// New creates a flat ledger for the route.
func New(route domain.Route, strategyID string) *Ledger {
	return &Ledger{
		route:      route,
		strategyID: strategyID,
		pos: domain.Position{
			RouteKey: route.Key(),
			Side:     domain.PositionFlat,
		},
	}
}

// Position returns a copy of the current position.
func (l *Ledger) Position() domain.Position {
	return l.pos
}

// Apply folds one fill into the position and returns the transitions it
// caused. The fee on the fill is accumulated into the position and nets
// against the realized pnl of the eventual closed trade.
func (l *Ledger) Apply(fill domain.Fill) ([]Transition, error) {
	if fill.Quantity <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrZeroQuantityFill, fill.Quantity)
	}

	if !l.pos.Open() {
		l.open(fill, fill.Quantity)
		return []Transition{{Kind: TransitionOpened}}, nil
	}

	if sameDirection(l.pos.Side, fill.Side) {
		l.increase(fill)
		return []Transition{{Kind: TransitionIncreased}}, nil
	}

	switch {
	case fill.Quantity < l.pos.Quantity:
		delta := l.reduce(fill, fill.Quantity)
		return []Transition{{Kind: TransitionReduced, RealizedDelta: delta}}, nil

	case fill.Quantity == l.pos.Quantity:
		delta, trade := l.close(fill, fill.Quantity, fill.Fee)
		return []Transition{{Kind: TransitionClosed, RealizedDelta: delta, Trade: trade}}, nil

	default:
		// The fill overshoots the open quantity: close the position with
		// the covered part, then open the remainder on the opposite side.
		// The fee splits pro rata between the two.
		closeQty := l.pos.Quantity
		openQty := fill.Quantity - closeQty
		closeFee := fill.Fee * closeQty / fill.Quantity
		openFee := fill.Fee - closeFee

		closeFill := fill
		closeFill.Quantity = closeQty
		closeFill.Fee = closeFee
		delta, trade := l.close(closeFill, closeQty, closeFee)

		openFill := fill
		openFill.Quantity = openQty
		openFill.Fee = openFee
		l.open(openFill, openQty)

		return []Transition{
			{Kind: TransitionClosed, RealizedDelta: delta, Trade: trade},
			{Kind: TransitionOpened},
		}, nil
	}
}

func (l *Ledger) open(fill domain.Fill, qty float64) {
	side := domain.PositionLong
	if fill.Side == domain.SideSell {
		side = domain.PositionShort
	}
	l.pos = domain.Position{
		RouteKey:   l.route.Key(),
		Side:       side,
		Quantity:   qty,
		EntryPrice: fill.Price,
		OpenedAt:   fill.Time,
		Fees:       fill.Fee,
	}
	l.peakQty = qty
	l.exitQty = 0
	l.exitNotional = 0
}

func (l *Ledger) increase(fill domain.Fill) {
	total := l.pos.Quantity + fill.Quantity
	l.pos.EntryPrice = (l.pos.EntryPrice*l.pos.Quantity + fill.Price*fill.Quantity) / total
	l.pos.Quantity = total
	l.pos.Fees += fill.Fee
	if total > l.peakQty {
		l.peakQty = total
	}
}

func (l *Ledger) reduce(fill domain.Fill, qty float64) float64 {
	delta := realized(l.pos.Side, l.pos.EntryPrice, fill.Price, qty)
	l.pos.Quantity -= qty
	l.pos.RealizedPnl += delta
	l.pos.Fees += fill.Fee
	l.exitQty += qty
	l.exitNotional += fill.Price * qty
	return delta
}

func (l *Ledger) close(fill domain.Fill, qty, fee float64) (float64, *domain.ClosedTrade) {
	delta := realized(l.pos.Side, l.pos.EntryPrice, fill.Price, qty)
	l.pos.RealizedPnl += delta
	l.pos.Fees += fee
	l.exitQty += qty
	l.exitNotional += fill.Price * qty

	trade := &domain.ClosedTrade{
		TradeID: idhash.ComputeTradeID(
			l.route.Key(), l.strategyID, string(l.pos.Side), l.pos.OpenedAt, fill.Time),
		RouteKey:    l.route.Key(),
		Exchange:    l.route.Exchange,
		Symbol:      l.route.Symbol,
		Timeframe:   l.route.Timeframe,
		StrategyID:  l.strategyID,
		Side:        l.pos.Side,
		Quantity:    l.peakQty,
		EntryPrice:  l.pos.EntryPrice,
		ExitPrice:   l.exitNotional / l.exitQty,
		OpenedAt:    l.pos.OpenedAt,
		ClosedAt:    fill.Time,
		RealizedPnl: l.pos.RealizedPnl - l.pos.Fees,
		Fees:        l.pos.Fees,
	}

	l.pos = domain.Position{
		RouteKey: l.route.Key(),
		Side:     domain.PositionFlat,
	}
	l.peakQty = 0
	l.exitQty = 0
	l.exitNotional = 0

	return delta, trade
}

// realized computes gross pnl for closing qty units at price against entry.
func realized(side domain.PositionSide, entry, price, qty float64) float64 {
	diff := price - entry
	if side == domain.PositionShort {
		diff = -diff
	}
	return diff * qty
}

func sameDirection(side domain.PositionSide, fillSide domain.Side) bool {
	return (side == domain.PositionLong && fillSide == domain.SideBuy) ||
		(side == domain.PositionShort && fillSide == domain.SideSell)
}
