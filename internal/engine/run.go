package engine

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/ledger"
	"backtest-lab/internal/metrics"
	"backtest-lab/internal/observability"
)

// Run executes the simulation. It is strictly sequential: the clock is
// the only driver of time and every component call within one base step
// happens synchronously in fixed route order. Cancellation is checked
// between base steps; an aborted run returns the context error and its
// partial state is discarded by the caller, never persisted.
func (e *Engine) Run(ctx context.Context) (*domain.RunResult, error) {
	started := time.Now()

	for e.step = 0; e.step < e.steps; e.step++ {
		if err := ctx.Err(); err != nil {
			observability.RecordRun("aborted", time.Since(started).Seconds())
			return nil, fmt.Errorf("run %s aborted at step %d: %w", e.cfg.RunID, e.step, err)
		}
		if err := e.tick(); err != nil {
			observability.RecordRun("failed", time.Since(started).Seconds())
			return nil, err
		}
	}

	result := e.finish()
	observability.RecordRun("completed", time.Since(started).Seconds())
	observability.RecordTrades(len(result.ClosedTrades))
	observability.RecordSteps(e.steps)

	e.log.Info().
		Str("run_id", result.RunID).
		Int("steps", result.StepsSimulated).
		Int("trades", len(result.ClosedTrades)).
		Float64("final_balance", result.FinalBalance).
		Msg("run completed")

	return result, nil
}

// tick advances one base step: resolve queued orders against the new base
// candle, fold it into the aggregators, dispatch strategies whose
// timeframe candle just closed, then sample equity.
func (e *Engine) tick() error {
	now := e.startMs + int64(e.step)*domain.BaseResolutionMs

	bases := make(map[string]domain.Candle, len(e.aggs))
	for _, key := range e.seriesKeys() {
		bases[key] = e.series[key].At(e.startIdx[key] + e.step)
	}

	// Orders queued on earlier steps resolve against this step's candle;
	// a market intent emitted after candle t closes fills at candle t+1's
	// open. Route order is fixed, so multi-route fills are reproducible.
	for _, rs := range e.routes {
		fills := e.matcher.Resolve(rs.route.Key(), bases[rs.seriesKey])
		for _, fill := range fills {
			if err := e.applyFill(rs, fill); err != nil {
				return err
			}
		}
	}

	closedNow := make(map[string]struct{})
	for _, key := range e.seriesKeys() {
		for _, closed := range e.aggs[key].Advance(bases[key]) {
			hk := histKey(e.series[key].Exchange(), e.series[key].Symbol(), closed.Timeframe)
			e.histories[hk] = append(e.histories[hk], closed.Candle)
			closedNow[hk] = struct{}{}
		}
	}

	for _, rs := range e.routes {
		if _, ok := closedNow[rs.histKey]; !ok {
			continue
		}
		if err := e.dispatch(rs, now); err != nil {
			return err
		}
	}

	e.equity = append(e.equity, domain.EquityPoint{
		Time:   now,
		Equity: e.markToMarket(bases),
	})
	return nil
}

// applyFill updates the balance and the route's position, firing the
// lifecycle hooks its transitions demand. Fees leave the balance at fill
// time; realized pnl enters it on reduce and close.
func (e *Engine) applyFill(rs *routeState, fill domain.Fill) error {
	e.balance -= fill.Fee

	transitions, err := rs.ledger.Apply(fill)
	if err != nil {
		// The matching engine never emits non-positive fills; treat as an
		// internal invariant violation rather than a strategy bug.
		return fmt.Errorf("route %s: apply fill %s: %w", rs.route.Key(), fill.OrderID, err)
	}

	for _, tr := range transitions {
		e.balance += tr.RealizedDelta

		var hookErr error
		var hook string
		switch tr.Kind {
		case ledger.TransitionOpened:
			hook, hookErr = "OnOpenPosition", rs.strat.OnOpenPosition(rs.ctx)
		case ledger.TransitionIncreased:
			hook, hookErr = "OnIncreasedPosition", rs.strat.OnIncreasedPosition(rs.ctx)
		case ledger.TransitionReduced:
			hook, hookErr = "OnReducedPosition", rs.strat.OnReducedPosition(rs.ctx)
		case ledger.TransitionClosed:
			e.recorder.Record(tr.Trade)
			hook, hookErr = "OnClosePosition", rs.strat.OnClosePosition(rs.ctx, tr.Trade)
		}
		if hookErr != nil {
			return &StrategyError{
				RouteKey: rs.route.Key(),
				Hook:     hook,
				Step:     e.step,
				Time:     fill.Time,
				Err:      hookErr,
			}
		}
	}
	return nil
}

// dispatch runs the per-candle hook sequence for one route.
func (e *Engine) dispatch(rs *routeState, now int64) error {
	call := func(hook string, fn func() error) error {
		if err := fn(); err != nil {
			return &StrategyError{RouteKey: rs.route.Key(), Hook: hook, Step: e.step, Time: now, Err: err}
		}
		return nil
	}

	if err := call("Before", func() error { return rs.strat.Before(rs.ctx) }); err != nil {
		return err
	}

	pos := rs.ledger.Position()
	if pos.Open() {
		if err := call("UpdatePosition", func() error { return rs.strat.UpdatePosition(rs.ctx) }); err != nil {
			return err
		}
	} else {
		long, err := rs.strat.ShouldLong(rs.ctx)
		if err != nil {
			return &StrategyError{RouteKey: rs.route.Key(), Hook: "ShouldLong", Step: e.step, Time: now, Err: err}
		}
		if long {
			if err := call("GoLong", func() error { return rs.strat.GoLong(rs.ctx) }); err != nil {
				return err
			}
		} else {
			short, err := rs.strat.ShouldShort(rs.ctx)
			if err != nil {
				return &StrategyError{RouteKey: rs.route.Key(), Hook: "ShouldShort", Step: e.step, Time: now, Err: err}
			}
			if short {
				if err := call("GoShort", func() error { return rs.strat.GoShort(rs.ctx) }); err != nil {
					return err
				}
			}
		}
	}

	return call("After", func() error { return rs.strat.After(rs.ctx) })
}

// markToMarket values the account at the current base closes.
func (e *Engine) markToMarket(bases map[string]domain.Candle) float64 {
	equity := e.balance
	for _, rs := range e.routes {
		pos := rs.ledger.Position()
		if pos.Open() {
			equity += pos.UnrealizedPnl(bases[rs.seriesKey].Close)
		}
	}
	return equity
}

// finish liquidates still-open positions at the final base close for
// accounting and assembles the run result.
func (e *Engine) finish() *domain.RunResult {
	var terminal []domain.TerminalPosition
	for _, rs := range e.routes {
		pos := rs.ledger.Position()
		if !pos.Open() {
			continue
		}
		finalClose := e.series[rs.seriesKey].At(e.startIdx[rs.seriesKey] + e.steps - 1).Close
		unrealized := pos.UnrealizedPnl(finalClose)
		e.balance += unrealized
		terminal = append(terminal, domain.TerminalPosition{
			RouteKey:         pos.RouteKey,
			Side:             pos.Side,
			Quantity:         pos.Quantity,
			EntryPrice:       pos.EntryPrice,
			LiquidationPrice: finalClose,
			UnrealizedPnl:    unrealized,
		})
	}

	trades := e.recorder.Trades()
	return &domain.RunResult{
		RunID:             e.cfg.RunID,
		ClosedTrades:      trades,
		EquityCurve:       e.equity,
		Metrics:           metrics.Compute(trades, e.equity, e.cfg.StartingBalance, e.balance),
		TerminalPositions: terminal,
		FinalBalance:      e.balance,
		StepsSimulated:    e.steps,
	}
}
