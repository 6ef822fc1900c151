package strategy

import (
	"fmt"

	"backtest-lab/internal/domain"
)

// SMACrossStrategy enters long when the fast moving average crosses above
// the slow one and short on the opposite cross. Open positions are closed
// by a market order on the reverse cross.
type SMACrossStrategy struct {
	Base

	FastPeriod int
	SlowPeriod int
	BalancePct float64 // fraction of balance committed per entry
}

// NewSMACrossStrategy creates an SMACrossStrategy.
func NewSMACrossStrategy(fastPeriod, slowPeriod int, balancePct float64) *SMACrossStrategy {
	return &SMACrossStrategy{
		FastPeriod: fastPeriod,
		SlowPeriod: slowPeriod,
		BalancePct: balancePct,
	}
}

// Name returns the strategy identifier including parameters.
func (s *SMACrossStrategy) Name() string {
	return fmt.Sprintf("SMA_CROSS_f%d_s%d", s.FastPeriod, s.SlowPeriod)
}

// crossState computes the fast/slow relation for the current and previous
// candle, memoized per step.
type crossState struct {
	ready     bool
	crossUp   bool
	crossDown bool
}

func (s *SMACrossStrategy) state(ctx *Context) crossState {
	return Memo(ctx.Cache(), "sma_cross_state", func() crossState {
		candles := ctx.Candles()
		if len(candles) < s.SlowPeriod+1 {
			return crossState{}
		}
		prev := candles[:len(candles)-1]

		fastNow, ok1 := sma(candles, s.FastPeriod)
		slowNow, ok2 := sma(candles, s.SlowPeriod)
		fastPrev, ok3 := sma(prev, s.FastPeriod)
		slowPrev, ok4 := sma(prev, s.SlowPeriod)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return crossState{}
		}
		return crossState{
			ready:     true,
			crossUp:   fastPrev <= slowPrev && fastNow > slowNow,
			crossDown: fastPrev >= slowPrev && fastNow < slowNow,
		}
	})
}

// ShouldLong signals on an upward cross.
func (s *SMACrossStrategy) ShouldLong(ctx *Context) (bool, error) {
	st := s.state(ctx)
	return st.ready && st.crossUp, nil
}

// ShouldShort signals on a downward cross.
func (s *SMACrossStrategy) ShouldShort(ctx *Context) (bool, error) {
	st := s.state(ctx)
	return st.ready && st.crossDown, nil
}

// GoLong submits a market buy sized from the balance fraction.
func (s *SMACrossStrategy) GoLong(ctx *Context) error {
	return s.enter(ctx, domain.SideBuy)
}

// GoShort submits a market sell sized from the balance fraction.
func (s *SMACrossStrategy) GoShort(ctx *Context) error {
	return s.enter(ctx, domain.SideSell)
}

func (s *SMACrossStrategy) enter(ctx *Context, side domain.Side) error {
	candles := ctx.Candles()
	last := candles[len(candles)-1]
	qty := ctx.SizeForBalancePct(s.BalancePct, last.Close)
	if qty <= 0 {
		return nil
	}
	_, err := ctx.Submit(domain.OrderIntent{
		Side:     side,
		Kind:     domain.OrderKindMarket,
		Role:     domain.OrderRoleEntry,
		Quantity: qty,
	})
	return err
}

// UpdatePosition exits on the reverse cross with a market order.
func (s *SMACrossStrategy) UpdatePosition(ctx *Context) error {
	st := s.state(ctx)
	if !st.ready {
		return nil
	}
	pos := ctx.Position()
	exit := (pos.Side == domain.PositionLong && st.crossDown) ||
		(pos.Side == domain.PositionShort && st.crossUp)
	if !exit {
		return nil
	}

	side := domain.SideSell
	if pos.Side == domain.PositionShort {
		side = domain.SideBuy
	}
	_, err := ctx.Submit(domain.OrderIntent{
		Side:     side,
		Kind:     domain.OrderKindMarket,
		Role:     domain.OrderRoleEntry,
		Quantity: pos.Quantity,
	})
	return err
}

var _ Strategy = (*SMACrossStrategy)(nil)
