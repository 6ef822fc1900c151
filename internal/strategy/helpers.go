package strategy

import "backtest-lab/internal/domain"

// sma returns the simple moving average of the last period closes, or
// false when fewer candles are available.
func sma(candles []domain.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period), true
}

// highestHigh returns the maximum high over the last period candles
// ending before the most recent candle, or false when not enough data.
func highestHigh(candles []domain.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	window := candles[len(candles)-period-1 : len(candles)-1]
	hh := window[0].High
	for _, c := range window[1:] {
		if c.High > hh {
			hh = c.High
		}
	}
	return hh, true
}

// lowestLow mirrors highestHigh for the low side.
func lowestLow(candles []domain.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	window := candles[len(candles)-period-1 : len(candles)-1]
	ll := window[0].Low
	for _, c := range window[1:] {
		if c.Low < ll {
			ll = c.Low
		}
	}
	return ll, true
}
