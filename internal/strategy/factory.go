package strategy

import (
	"errors"
	"fmt"
)

// Factory errors.
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingFastPeriod   = errors.New("SMA_CROSS requires FastPeriod")
	ErrMissingSlowPeriod   = errors.New("SMA_CROSS requires SlowPeriod")
	ErrPeriodOrder         = errors.New("SMA_CROSS requires FastPeriod < SlowPeriod")
	ErrMissingLookback     = errors.New("BREAKOUT requires Lookback")
	ErrMissingStopLoss     = errors.New("BREAKOUT requires StopLossPct")
	ErrMissingTakeProfit   = errors.New("BREAKOUT requires TakeProfitPct")
	ErrInvalidBalancePct   = errors.New("BalancePct must be in (0, 1]")
)

// Strategy type constants.
const (
	TypeSMACross = "SMA_CROSS"
	TypeBreakout = "BREAKOUT"
)

// Config describes one strategy binding. Every route carrying the binding
// gets its own instance built from this config, so strategy state is
// never shared across routes or runs.
type Config struct {
	Type string

	// SMA_CROSS parameters
	FastPeriod *int
	SlowPeriod *int

	// BREAKOUT parameters
	Lookback      *int
	StopLossPct   *float64
	TakeProfitPct *float64

	// Common parameters
	BalancePct *float64 // defaults to 1.0
}

// FromConfig creates a fresh Strategy instance from cfg. Validates
// required parameters per strategy type and returns clear errors for
// missing or inconsistent params.
func FromConfig(cfg Config) (Strategy, error) {
	balancePct := 1.0
	if cfg.BalancePct != nil {
		balancePct = *cfg.BalancePct
	}
	if balancePct <= 0 || balancePct > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBalancePct, balancePct)
	}

	switch cfg.Type {
	case TypeSMACross:
		return fromSMACrossConfig(cfg, balancePct)
	case TypeBreakout:
		return fromBreakoutConfig(cfg, balancePct)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

func fromSMACrossConfig(cfg Config, balancePct float64) (*SMACrossStrategy, error) {
	if cfg.FastPeriod == nil {
		return nil, ErrMissingFastPeriod
	}
	if cfg.SlowPeriod == nil {
		return nil, ErrMissingSlowPeriod
	}
	if *cfg.FastPeriod >= *cfg.SlowPeriod || *cfg.FastPeriod <= 0 {
		return nil, ErrPeriodOrder
	}
	return NewSMACrossStrategy(*cfg.FastPeriod, *cfg.SlowPeriod, balancePct), nil
}

func fromBreakoutConfig(cfg Config, balancePct float64) (*BreakoutStrategy, error) {
	if cfg.Lookback == nil {
		return nil, ErrMissingLookback
	}
	if cfg.StopLossPct == nil {
		return nil, ErrMissingStopLoss
	}
	if cfg.TakeProfitPct == nil {
		return nil, ErrMissingTakeProfit
	}
	return NewBreakoutStrategy(*cfg.Lookback, *cfg.StopLossPct, *cfg.TakeProfitPct, balancePct), nil
}

// Bindings maps strategy binding names (referenced by routes) to configs.
type Bindings map[string]Config
