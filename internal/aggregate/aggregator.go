// Package aggregate derives higher-timeframe candles from the base
// resolution incrementally, as the simulation advances. A derived candle
// is closed only when all of its constituent base candles have been
// observed, which is what structurally prevents lookahead at the
// aggregation layer.
package aggregate

import (
	"fmt"
	"sort"

	"backtest-lab/internal/domain"
)

// Closed is one derived candle that just closed, tagged with its timeframe.
type Closed struct {
	Timeframe domain.Timeframe
	Candle    domain.Candle
}

// Aggregator maintains one rolling candle per registered timeframe for a
// single (exchange, symbol) base series. Boundary crossing is wall-clock
// aligned: an hourly candle closes when the base timestamp crosses an hour
// boundary, not after a fixed candle count.
type Aggregator struct {
	exchange   string
	symbol     string
	timeframes []domain.Timeframe
	rolling    map[domain.Timeframe]*rollingCandle
}

type rollingCandle struct {
	boundary int64 // floored open time of the derived candle under construction
	candle   domain.Candle
	started  bool
	complete bool // first constituent landed exactly on the boundary
}

// New creates an Aggregator for the given timeframes. Timeframes are
// deduplicated and validated; an unsupported timeframe fails here, at
// registration time, never mid-run.
func New(exchange, symbol string, timeframes []domain.Timeframe) (*Aggregator, error) {
	seen := make(map[domain.Timeframe]struct{}, len(timeframes))
	uniq := make([]domain.Timeframe, 0, len(timeframes))
	for _, tf := range timeframes {
		if !tf.Supported() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedTimeframe, tf)
		}
		if _, dup := seen[tf]; dup {
			continue
		}
		seen[tf] = struct{}{}
		uniq = append(uniq, tf)
	}

	// Stable output order regardless of registration order.
	sort.Slice(uniq, func(i, j int) bool {
		return uniq[i].DurationMs() < uniq[j].DurationMs()
	})

	rolling := make(map[domain.Timeframe]*rollingCandle, len(uniq))
	for _, tf := range uniq {
		rolling[tf] = &rollingCandle{}
	}

	return &Aggregator{
		exchange:   exchange,
		symbol:     symbol,
		timeframes: uniq,
		rolling:    rolling,
	}, nil
}

// Advance folds one base candle into every rolling candle and returns the
// derived candles whose boundary was just crossed, ordered by timeframe
// duration ascending. The open of a derived candle is the first
// constituent's open, close the last constituent's close, high/low the
// extrema, volume the sum; its open time is the wall-clock floor of the
// first constituent.
func (a *Aggregator) Advance(base domain.Candle) []Closed {
	var closed []Closed
	for _, tf := range a.timeframes {
		if c, ok := a.advanceOne(tf, base); ok {
			closed = append(closed, Closed{Timeframe: tf, Candle: c})
		}
	}
	return closed
}

func (a *Aggregator) advanceOne(tf domain.Timeframe, base domain.Candle) (domain.Candle, bool) {
	r := a.rolling[tf]
	boundary := tf.Floor(base.OpenTime)

	if r.started && boundary != r.boundary {
		// The base feed moved past the rolling candle's boundary without
		// the final constituent arriving. Series validation rejects gaps,
		// so this is only reachable with a partial leading window; the
		// incomplete candle is discarded, never emitted as closed.
		r.started = false
	}

	if !r.started {
		r.boundary = boundary
		r.candle = domain.Candle{
			OpenTime: boundary,
			Open:     base.Open,
			High:     base.High,
			Low:      base.Low,
			Close:    base.Close,
			Volume:   base.Volume,
		}
		r.started = true
		r.complete = base.OpenTime == boundary
	} else {
		if base.High > r.candle.High {
			r.candle.High = base.High
		}
		if base.Low < r.candle.Low {
			r.candle.Low = base.Low
		}
		r.candle.Close = base.Close
		r.candle.Volume += base.Volume
	}

	// The derived candle closes when this base candle is its last
	// constituent, i.e. the next base open time lands on a boundary. A
	// leading window that started mid-boundary is dropped here instead of
	// being emitted short.
	if (base.OpenTime+domain.BaseResolutionMs)%tf.DurationMs() == 0 {
		done := r.candle
		emit := r.complete
		r.started = false
		return done, emit
	}
	return domain.Candle{}, false
}

// Timeframes returns the registered timeframes in output order.
func (a *Aggregator) Timeframes() []domain.Timeframe {
	return a.timeframes
}
