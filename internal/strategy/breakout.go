package strategy

import (
	"fmt"

	"backtest-lab/internal/domain"
)

// BreakoutStrategy enters long when the close breaks above the recent
// range high (short below the range low) and manages the position with a
// stop-loss / take-profit bracket. The two bracket orders share an OCO
// group, so whichever fills cancels the other.
type BreakoutStrategy struct {
	Base

	Lookback      int
	StopLossPct   float64
	TakeProfitPct float64
	BalancePct    float64
}

// NewBreakoutStrategy creates a BreakoutStrategy.
func NewBreakoutStrategy(lookback int, stopLossPct, takeProfitPct, balancePct float64) *BreakoutStrategy {
	return &BreakoutStrategy{
		Lookback:      lookback,
		StopLossPct:   stopLossPct,
		TakeProfitPct: takeProfitPct,
		BalancePct:    balancePct,
	}
}

// Name returns the strategy identifier including parameters.
func (s *BreakoutStrategy) Name() string {
	return fmt.Sprintf("BREAKOUT_n%d_sl%.0f_tp%.0f",
		s.Lookback, s.StopLossPct*100, s.TakeProfitPct*100)
}

// ShouldLong signals when the latest close exceeds the lookback high.
func (s *BreakoutStrategy) ShouldLong(ctx *Context) (bool, error) {
	candles := ctx.Candles()
	hh, ok := highestHigh(candles, s.Lookback)
	if !ok {
		return false, nil
	}
	return candles[len(candles)-1].Close > hh, nil
}

// ShouldShort signals when the latest close drops below the lookback low.
func (s *BreakoutStrategy) ShouldShort(ctx *Context) (bool, error) {
	candles := ctx.Candles()
	ll, ok := lowestLow(candles, s.Lookback)
	if !ok {
		return false, nil
	}
	return candles[len(candles)-1].Close < ll, nil
}

// GoLong submits a market buy.
func (s *BreakoutStrategy) GoLong(ctx *Context) error {
	return s.enter(ctx, domain.SideBuy)
}

// GoShort submits a market sell.
func (s *BreakoutStrategy) GoShort(ctx *Context) error {
	return s.enter(ctx, domain.SideSell)
}

func (s *BreakoutStrategy) enter(ctx *Context, side domain.Side) error {
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

// OnOpenPosition places the bracket around the actual entry price.
func (s *BreakoutStrategy) OnOpenPosition(ctx *Context) error {
	pos := ctx.Position()
	group := fmt.Sprintf("bracket-%d", pos.OpenedAt)

	exitSide := domain.SideSell
	stop := pos.EntryPrice * (1 - s.StopLossPct)
	take := pos.EntryPrice * (1 + s.TakeProfitPct)
	if pos.Side == domain.PositionShort {
		exitSide = domain.SideBuy
		stop = pos.EntryPrice * (1 + s.StopLossPct)
		take = pos.EntryPrice * (1 - s.TakeProfitPct)
	}

	if _, err := ctx.Submit(domain.OrderIntent{
		Side:         exitSide,
		Kind:         domain.OrderKindStop,
		Role:         domain.OrderRoleStopLoss,
		Quantity:     pos.Quantity,
		TriggerPrice: stop,
		OCOGroup:     group,
	}); err != nil {
		return err
	}

	_, err := ctx.Submit(domain.OrderIntent{
		Side:       exitSide,
		Kind:       domain.OrderKindLimit,
		Role:       domain.OrderRoleTakeProfit,
		Quantity:   pos.Quantity,
		LimitPrice: take,
		OCOGroup:   group,
	})
	return err
}

// OnClosePosition clears any leftover working orders.
func (s *BreakoutStrategy) OnClosePosition(ctx *Context, _ *domain.ClosedTrade) error {
	ctx.CancelAll()
	return nil
}

var _ Strategy = (*BreakoutStrategy)(nil)
