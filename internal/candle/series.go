// Package candle provides validated, immutable base-resolution candle
// series. A series is the engine's source of truth for one
// (exchange, symbol) pair; all higher timeframes derive from it.
package candle

import (
	"errors"
	"fmt"

	"backtest-lab/internal/domain"
)

// Integrity errors. A gap or ordering violation in supplied data aborts
// the run; it is never interpolated around.
var (
	ErrEmptySeries  = errors.New("candle series is empty")
	ErrNotAligned   = errors.New("candle open time not aligned to base resolution")
	ErrOutOfRange   = errors.New("requested range outside series bounds")
	ErrMalformed    = errors.New("candle violates high/low ordering")
	ErrNonMonotonic = errors.New("candle open times not strictly increasing")
	ErrGap          = errors.New("gap in candle series")
)

// IntegrityError attributes a data-integrity failure to the offending
// position in a series.
type IntegrityError struct {
	Exchange string
	Symbol   string
	Index    int   // position of the offending candle
	Expected int64 // expected open time (ms), 0 when not applicable
	Actual   int64 // observed open time (ms)
	Err      error
}

func (e *IntegrityError) Error() string {
	if e.Expected != 0 {
		return fmt.Sprintf("%s-%s candle %d: %v (expected open_time %d, got %d)",
			e.Exchange, e.Symbol, e.Index, e.Err, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s-%s candle %d: %v (open_time %d)",
		e.Exchange, e.Symbol, e.Index, e.Err, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Series is an immutable, contiguous base-resolution candle sequence.
// Construction validates ordering, alignment and gap-freedom once; the
// engine then indexes it by step without further checks.
type Series struct {
	exchange string
	symbol   string
	candles  []domain.Candle
}

// NewSeries validates candles and wraps them in a Series. The slice is
// retained; callers must not mutate it afterwards.
func NewSeries(exchange, symbol string, candles []domain.Candle) (*Series, error) {
	if len(candles) == 0 {
		return nil, &IntegrityError{Exchange: exchange, Symbol: symbol, Err: ErrEmptySeries}
	}

	for i, c := range candles {
		if c.OpenTime%domain.BaseResolutionMs != 0 {
			return nil, &IntegrityError{Exchange: exchange, Symbol: symbol, Index: i, Actual: c.OpenTime, Err: ErrNotAligned}
		}
		if !c.WellFormed() {
			return nil, &IntegrityError{Exchange: exchange, Symbol: symbol, Index: i, Actual: c.OpenTime, Err: ErrMalformed}
		}
		if i == 0 {
			continue
		}
		expected := candles[i-1].OpenTime + domain.BaseResolutionMs
		switch {
		case c.OpenTime <= candles[i-1].OpenTime:
			return nil, &IntegrityError{Exchange: exchange, Symbol: symbol, Index: i, Expected: expected, Actual: c.OpenTime, Err: ErrNonMonotonic}
		case c.OpenTime != expected:
			return nil, &IntegrityError{Exchange: exchange, Symbol: symbol, Index: i, Expected: expected, Actual: c.OpenTime, Err: ErrGap}
		}
	}

	return &Series{exchange: exchange, symbol: symbol, candles: candles}, nil
}

// Exchange returns the exchange this series belongs to.
func (s *Series) Exchange() string { return s.exchange }

// Symbol returns the symbol this series belongs to.
func (s *Series) Symbol() string { return s.symbol }

// Key returns the (exchange, symbol) identity of the series.
func (s *Series) Key() string { return s.exchange + "-" + s.symbol }

// Len returns the number of base candles.
func (s *Series) Len() int { return len(s.candles) }

// StartMs returns the open time of the first candle.
func (s *Series) StartMs() int64 { return s.candles[0].OpenTime }

// EndMs returns the open time of the last candle.
func (s *Series) EndMs() int64 { return s.candles[len(s.candles)-1].OpenTime }

// At returns the candle at index i.
func (s *Series) At(i int) domain.Candle { return s.candles[i] }

// IndexOf returns the index of the candle with the given open time.
func (s *Series) IndexOf(openTime int64) (int, error) {
	if openTime < s.StartMs() || openTime > s.EndMs() {
		return 0, fmt.Errorf("%w: open_time %d not in [%d, %d]", ErrOutOfRange, openTime, s.StartMs(), s.EndMs())
	}
	// Contiguity makes the index arithmetic.
	return int((openTime - s.StartMs()) / domain.BaseResolutionMs), nil
}

// Slice returns the candles in [fromMs, toMs] inclusive.
func (s *Series) Slice(fromMs, toMs int64) ([]domain.Candle, error) {
	lo, err := s.IndexOf(fromMs)
	if err != nil {
		return nil, err
	}
	hi, err := s.IndexOf(toMs)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("%w: from %d after to %d", ErrOutOfRange, fromMs, toMs)
	}
	return s.candles[lo : hi+1], nil
}
