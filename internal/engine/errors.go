package engine

import (
	"errors"
	"fmt"
)

// Configuration errors, surfaced before the simulation starts. A run with
// any of these never begins.
var (
	ErrNoRoutes           = errors.New("run config has no trading routes")
	ErrDuplicateRoute     = errors.New("duplicate route")
	ErrMissingSeries      = errors.New("no candle series supplied for route")
	ErrMissingBinding     = errors.New("route references unknown strategy binding")
	ErrBadTimeRange       = errors.New("configured time range is empty or inverted")
	ErrRangeOutsideSeries = errors.New("configured time range outside candle series bounds")
	ErrBadBalance         = errors.New("starting balance must be positive")
)

// StrategyError attributes an unhandled strategy hook failure to the
// route and step where it happened. It aborts the run; a partial run
// would invalidate the metrics, and retrying deterministic computation
// cannot change the outcome.
type StrategyError struct {
	RouteKey string
	Hook     string
	Step     int
	Time     int64 // ms, open time of the candle being evaluated
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy hook %s failed on route %s at step %d (t=%d): %v",
		e.Hook, e.RouteKey, e.Step, e.Time, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }
