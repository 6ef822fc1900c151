package domain

import (
	"errors"
	"testing"
)

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("4h")
	if err != nil {
		t.Fatalf("ParseTimeframe: %v", err)
	}
	if tf != Timeframe4h {
		t.Errorf("tf = %q", tf)
	}

	if _, err := ParseTimeframe("7m"); !errors.Is(err, ErrUnsupportedTimeframe) {
		t.Errorf("err = %v, want ErrUnsupportedTimeframe", err)
	}
	if _, err := ParseTimeframe(""); !errors.Is(err, ErrUnsupportedTimeframe) {
		t.Errorf("empty string err = %v", err)
	}
}

func TestDurationMs(t *testing.T) {
	cases := map[Timeframe]int64{
		Timeframe1m: 60_000,
		Timeframe1h: 3_600_000,
		Timeframe1D: 86_400_000,
		Timeframe1W: 604_800_000,
	}
	for tf, want := range cases {
		if got := tf.DurationMs(); got != want {
			t.Errorf("%s.DurationMs() = %d, want %d", tf, got, want)
		}
	}
}

func TestFloorIsWallClockAligned(t *testing.T) {
	// 2021-01-01T10:37:00Z floored to the hour is 10:00:00.
	ts := int64(1609497420000)
	want := int64(1609495200000)
	if got := Timeframe1h.Floor(ts); got != want {
		t.Errorf("Floor = %d, want %d", got, want)
	}

	// A timestamp already on the boundary floors to itself.
	if got := Timeframe1h.Floor(want); got != want {
		t.Errorf("Floor of boundary = %d, want %d", got, want)
	}
}

func TestCandleWellFormed(t *testing.T) {
	good := Candle{Open: 10, High: 12, Low: 9, Close: 11}
	if !good.WellFormed() {
		t.Error("valid candle reported malformed")
	}
	flat := Candle{Open: 10, High: 10, Low: 10, Close: 10}
	if !flat.WellFormed() {
		t.Error("flat candle reported malformed")
	}
	badHigh := Candle{Open: 10, High: 9, Low: 8, Close: 9}
	if badHigh.WellFormed() {
		t.Error("high below open reported well-formed")
	}
	badLow := Candle{Open: 10, High: 12, Low: 11, Close: 11}
	if badLow.WellFormed() {
		t.Error("low above close reported well-formed")
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Error("Opposite is not an involution over buy/sell")
	}
}
