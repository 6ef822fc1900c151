// Package engine drives one deterministic backtest run. A single global
// clock advances over the base-resolution step range; each tick feeds the
// aggregators, resolves queued orders against the new candle, and
// dispatches strategies for routes whose timeframe candle just closed, in
// a fixed route order. A run owns all of its mutable state; concurrent
// runs share nothing but the immutable candle series.
package engine

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"backtest-lab/internal/aggregate"
	"backtest-lab/internal/candle"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/ledger"
	"backtest-lab/internal/matching"
	"backtest-lab/internal/strategy"
)

// routeState bundles everything one trading route owns for the run.
type routeState struct {
	route     domain.Route
	seriesKey string
	histKey   string
	strat     strategy.Strategy
	ctx       *strategy.Context
	ledger    *ledger.Ledger
}

// Engine executes one run. Build it with New, run it once with Run.
type Engine struct {
	cfg      domain.RunConfig
	series   map[string]*candle.Series // keyed by exchange-symbol
	log      zerolog.Logger

	routes     []*routeState // trading routes in stable key order
	aggs       map[string]*aggregate.Aggregator
	histories  map[string][]domain.Candle // exchange-symbol-timeframe -> closed candles
	matcher    *matching.Engine
	recorder   *ledger.Recorder
	balance    float64
	equity     []domain.EquityPoint
	step       int
	startIdx   map[string]int // per series key, index of the run's first step
	steps      int
	startMs    int64

	rejectedIntents int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New validates the run configuration and assembles an engine. All
// configuration errors surface here; Run never starts a half-valid
// simulation.
func New(cfg domain.RunConfig, series map[string]*candle.Series, bindings strategy.Bindings, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		series:    series,
		log:       zerolog.Nop(),
		aggs:      make(map[string]*aggregate.Aggregator),
		histories: make(map[string][]domain.Candle),
		matcher:   matching.NewEngine(cfg.Execution),
		recorder:  ledger.NewRecorder(),
		balance:   cfg.StartingBalance,
		startIdx:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}

	if len(cfg.Routes) == 0 {
		return nil, ErrNoRoutes
	}
	if cfg.StartingBalance <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrBadBalance, cfg.StartingBalance)
	}

	if err := e.registerRoutes(bindings); err != nil {
		return nil, err
	}
	if err := e.resolveWindow(); err != nil {
		return nil, err
	}
	if err := e.buildAggregators(); err != nil {
		return nil, err
	}

	if e.cfg.RunID == "" {
		e.cfg.RunID = idhash.ComputeRunID(fingerprint(e.cfg))
	}
	return e, nil
}

// registerRoutes validates every route (trading and data), resolves
// strategy bindings, and sorts trading routes by their stable key so
// dispatch order never depends on registration order.
func (e *Engine) registerRoutes(bindings strategy.Bindings) error {
	seen := make(map[string]struct{})
	all := make([]domain.Route, 0, len(e.cfg.Routes)+len(e.cfg.DataRoutes))
	all = append(all, e.cfg.Routes...)
	all = append(all, e.cfg.DataRoutes...)

	for _, r := range all {
		if !r.Timeframe.Supported() {
			return fmt.Errorf("route %s-%s: %w: %q", r.Exchange, r.Symbol, domain.ErrUnsupportedTimeframe, r.Timeframe)
		}
		if _, ok := e.series[r.SeriesKey()]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingSeries, r.SeriesKey())
		}
		if _, dup := seen[r.Key()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, r.Key())
		}
		seen[r.Key()] = struct{}{}
	}

	for _, r := range e.cfg.Routes {
		cfg, ok := bindings[r.Strategy]
		if !ok {
			return fmt.Errorf("%w: route %s strategy %q", ErrMissingBinding, r.Key(), r.Strategy)
		}
		strat, err := strategy.FromConfig(cfg)
		if err != nil {
			return fmt.Errorf("route %s: %w", r.Key(), err)
		}

		rs := &routeState{
			route:     r,
			seriesKey: r.SeriesKey(),
			histKey:   histKey(r.Exchange, r.Symbol, r.Timeframe),
			strat:     strat,
			ledger:    ledger.New(r, strat.Name()),
		}
		rs.ctx = strategy.NewContext(r, &marketView{engine: e, rs: rs}, &broker{engine: e, rs: rs})
		e.routes = append(e.routes, rs)
	}

	sort.Slice(e.routes, func(i, j int) bool {
		return e.routes[i].route.Key() < e.routes[j].route.Key()
	})
	return nil
}

// resolveWindow fixes the run's step range: the configured [StartMs,
// EndMs] window, defaulting to the intersection of all involved series
// ranges. A window reaching outside any series is a configuration error;
// the engine never forward-fills.
func (e *Engine) resolveWindow() error {
	var interStart, interEnd int64
	first := true
	for _, key := range e.seriesKeys() {
		s := e.series[key]
		if first {
			interStart, interEnd = s.StartMs(), s.EndMs()
			first = false
			continue
		}
		if s.StartMs() > interStart {
			interStart = s.StartMs()
		}
		if s.EndMs() < interEnd {
			interEnd = s.EndMs()
		}
	}

	start, end := e.cfg.StartMs, e.cfg.EndMs
	if start == 0 && end == 0 {
		start, end = interStart, interEnd
	}
	if start%domain.BaseResolutionMs != 0 || end%domain.BaseResolutionMs != 0 {
		return fmt.Errorf("%w: bounds not aligned to base resolution", ErrBadTimeRange)
	}
	if end < start {
		return fmt.Errorf("%w: start %d after end %d", ErrBadTimeRange, start, end)
	}
	if start < interStart || end > interEnd {
		return fmt.Errorf("%w: [%d, %d] not within [%d, %d]", ErrRangeOutsideSeries, start, end, interStart, interEnd)
	}

	for _, key := range e.seriesKeys() {
		idx, err := e.series[key].IndexOf(start)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRangeOutsideSeries, err)
		}
		e.startIdx[key] = idx
	}
	e.startMs = start
	e.steps = int((end-start)/domain.BaseResolutionMs) + 1
	e.cfg.StartMs, e.cfg.EndMs = start, end
	return nil
}

// buildAggregators creates one aggregator per base series carrying every
// timeframe any route (trading or data) needs from it.
func (e *Engine) buildAggregators() error {
	perSeries := make(map[string][]domain.Timeframe)
	add := func(r domain.Route) {
		perSeries[r.SeriesKey()] = append(perSeries[r.SeriesKey()], r.Timeframe)
		e.histories[histKey(r.Exchange, r.Symbol, r.Timeframe)] = nil
	}
	for _, r := range e.cfg.Routes {
		add(r)
	}
	for _, r := range e.cfg.DataRoutes {
		add(r)
	}

	for key, tfs := range perSeries {
		s := e.series[key]
		agg, err := aggregate.New(s.Exchange(), s.Symbol(), tfs)
		if err != nil {
			return err
		}
		e.aggs[key] = agg
	}
	return nil
}

// seriesKeys returns the distinct series keys of all routes, sorted.
func (e *Engine) seriesKeys() []string {
	set := make(map[string]struct{})
	for _, r := range e.cfg.Routes {
		set[r.SeriesKey()] = struct{}{}
	}
	for _, r := range e.cfg.DataRoutes {
		set[r.SeriesKey()] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunID returns the (possibly derived) run identifier.
func (e *Engine) RunID() string {
	return e.cfg.RunID
}

func histKey(exchange, symbol string, tf domain.Timeframe) string {
	return exchange + "-" + symbol + "-" + string(tf)
}

// fingerprint serializes the identifying config fields for run ID
// derivation. Route order is normalized so equivalent configs fingerprint
// identically.
func fingerprint(cfg domain.RunConfig) string {
	keys := make([]string, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		keys = append(keys, r.Key()+"/"+r.Strategy)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%v|%d|%d|%v|%v|%v|%v",
		keys, cfg.StartMs, cfg.EndMs, cfg.StartingBalance,
		cfg.Execution.FeeRate, cfg.Execution.SlippagePct, cfg.Execution.Leverage)
}
