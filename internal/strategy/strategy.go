// Package strategy defines the hook interface backtest strategies
// implement and the per-route context they execute against. Strategies
// read market state through the context and act only by submitting order
// intents; they never touch ledger state directly.
package strategy

import "backtest-lab/internal/domain"

// Strategy is the capability set invoked by the simulation clock once per
// closed candle of the strategy's route. Embed Base to get no-op defaults
// for the hooks a strategy does not care about.
//
// Dispatch order per closed candle with no open position:
// Before -> ShouldLong/ShouldShort -> GoLong/GoShort -> After.
// With an open position: Before -> UpdatePosition -> After.
// Lifecycle hooks fire when fills transition the position.
type Strategy interface {
	// Name returns the strategy identifier (includes parameters).
	Name() string

	// Before runs first on every closed candle of the route.
	Before(ctx *Context) error

	// ShouldLong is evaluated when the position is flat.
	ShouldLong(ctx *Context) (bool, error)

	// ShouldShort is evaluated when the position is flat and ShouldLong
	// returned false.
	ShouldShort(ctx *Context) (bool, error)

	// GoLong emits the entry order intents for a long position.
	GoLong(ctx *Context) error

	// GoShort emits the entry order intents for a short position.
	GoShort(ctx *Context) error

	// UpdatePosition runs once per closed candle while a position is open.
	UpdatePosition(ctx *Context) error

	// Lifecycle callbacks, fired by fills.
	OnOpenPosition(ctx *Context) error
	OnIncreasedPosition(ctx *Context) error
	OnReducedPosition(ctx *Context) error
	OnClosePosition(ctx *Context, trade *domain.ClosedTrade) error

	// After runs last on every closed candle of the route.
	After(ctx *Context) error
}

// Base provides no-op defaults for every optional hook.
type Base struct{}

func (Base) Before(*Context) error                { return nil }
func (Base) ShouldLong(*Context) (bool, error)    { return false, nil }
func (Base) ShouldShort(*Context) (bool, error)   { return false, nil }
func (Base) GoLong(*Context) error                { return nil }
func (Base) GoShort(*Context) error               { return nil }
func (Base) UpdatePosition(*Context) error        { return nil }
func (Base) OnOpenPosition(*Context) error        { return nil }
func (Base) OnIncreasedPosition(*Context) error   { return nil }
func (Base) OnReducedPosition(*Context) error     { return nil }
func (Base) After(*Context) error                 { return nil }
func (Base) OnClosePosition(*Context, *domain.ClosedTrade) error { return nil }
