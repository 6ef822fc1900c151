package domain

import (
	"errors"
	"fmt"
)

// Timeframe identifies a candle interval derived from the base resolution.
type Timeframe string

// Supported timeframes. Anything else is rejected at route registration.
const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe45m Timeframe = "45m"
	Timeframe1h  Timeframe = "1h"
	Timeframe2h  Timeframe = "2h"
	Timeframe3h  Timeframe = "3h"
	Timeframe4h  Timeframe = "4h"
	Timeframe6h  Timeframe = "6h"
	Timeframe8h  Timeframe = "8h"
	Timeframe12h Timeframe = "12h"
	Timeframe1D  Timeframe = "1D"
	Timeframe3D  Timeframe = "3D"
	Timeframe1W  Timeframe = "1W"
)

// ErrUnsupportedTimeframe is returned when a route requests a timeframe
// outside the supported set.
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// timeframeMinutes maps each supported timeframe to its span in minutes.
var timeframeMinutes = map[Timeframe]int64{
	Timeframe1m:  1,
	Timeframe3m:  3,
	Timeframe5m:  5,
	Timeframe15m: 15,
	Timeframe30m: 30,
	Timeframe45m: 45,
	Timeframe1h:  60,
	Timeframe2h:  120,
	Timeframe3h:  180,
	Timeframe4h:  240,
	Timeframe6h:  360,
	Timeframe8h:  480,
	Timeframe12h: 720,
	Timeframe1D:  1440,
	Timeframe3D:  4320,
	Timeframe1W:  10080,
}

// ParseTimeframe validates s against the supported set.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeMinutes[tf]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, s)
	}
	return tf, nil
}

// Supported reports whether the timeframe is in the supported set.
func (tf Timeframe) Supported() bool {
	_, ok := timeframeMinutes[tf]
	return ok
}

// DurationMs returns the timeframe span in milliseconds.
// Panics on an unsupported timeframe; callers validate at registration.
func (tf Timeframe) DurationMs() int64 {
	m, ok := timeframeMinutes[tf]
	if !ok {
		panic(fmt.Sprintf("timeframe %q not validated at registration", tf))
	}
	return m * 60_000
}

// Floor returns ts floored to the timeframe boundary. Boundaries are
// wall-clock aligned from the Unix epoch, so gaps in the base feed cannot
// desynchronize timeframes sharing a common divisor.
func (tf Timeframe) Floor(ts int64) int64 {
	d := tf.DurationMs()
	return ts - ts%d
}
