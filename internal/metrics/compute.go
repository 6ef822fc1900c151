// Package metrics turns a run's trade log and equity curve into summary
// statistics. Everything here is pure computation over finished data and
// iterates in input order, so results are reproducible across runs.
package metrics

import (
	"math"

	"backtest-lab/internal/domain"
)

// stepsPerYear annualizes per-step quantities; the equity curve is sampled
// once per base-resolution minute.
const stepsPerYear = 365 * 24 * 60

// Compute calculates all summary metrics for one run. Trades must be in
// close order (the recorder preserves it). Every field is defined for an
// empty trade log or a flat equity curve: ratios degrade to zero, never
// NaN or Inf.
func Compute(trades []*domain.ClosedTrade, equity []domain.EquityPoint, startingBalance, finalBalance float64) *domain.Metrics {
	m := &domain.Metrics{
		StartingBalance: startingBalance,
		FinalBalance:    finalBalance,
		NetProfit:       finalBalance - startingBalance,
	}
	if startingBalance > 0 {
		m.NetProfitPct = m.NetProfit / startingBalance * 100
	}

	fillTradeStats(m, trades)
	fillEquityStats(m, equity, startingBalance)
	return m
}

func fillTradeStats(m *domain.Metrics, trades []*domain.ClosedTrade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var grossWins, grossLosses float64
	var holdingMs int64
	var curWins, curLosses int
	for _, t := range trades {
		holdingMs += t.HoldingDurationMs()
		m.TotalFees += t.Fees

		if t.Win() {
			m.WinningTrades++
			grossWins += t.RealizedPnl
			curWins++
			curLosses = 0
		} else {
			m.LosingTrades++
			grossLosses += -t.RealizedPnl
			curLosses++
			curWins = 0
		}
		if curWins > m.MaxConsecutive.Wins {
			m.MaxConsecutive.Wins = curWins
		}
		if curLosses > m.MaxConsecutive.Losses {
			m.MaxConsecutive.Losses = curLosses
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AvgHoldingMs = holdingMs / int64(len(trades))
	if m.WinningTrades > 0 {
		m.AverageWin = grossWins / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLosses / float64(m.LosingTrades)
	}
	if grossLosses > 0 {
		m.ProfitFactor = grossWins / grossLosses
	}
}

func fillEquityStats(m *domain.Metrics, equity []domain.EquityPoint, startingBalance float64) {
	if len(equity) < 2 || startingBalance <= 0 {
		return
	}

	m.MaxDrawdown = maxDrawdown(equity)
	m.LongestFlatMs = longestFlat(equity)

	returns := stepReturns(equity)
	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	if stddev > 0 {
		m.SharpeRatio = mean / stddev * math.Sqrt(stepsPerYear)
	}
	if down := downsideDeviation(returns); down > 0 {
		m.SortinoRatio = mean / down * math.Sqrt(stepsPerYear)
	}
	m.OmegaRatio = omega(returns)

	totalReturn := equity[len(equity)-1].Equity / startingBalance
	if totalReturn > 0 {
		m.AnnualReturn = math.Pow(totalReturn, stepsPerYear/float64(len(equity)-1)) - 1
	} else {
		m.AnnualReturn = -1
	}
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualReturn / m.MaxDrawdown
	}
}

// maxDrawdown returns the worst peak-to-trough fall as a fraction of the
// peak.
func maxDrawdown(equity []domain.EquityPoint) float64 {
	peak := equity[0].Equity
	var worst float64
	for _, p := range equity[1:] {
		if p.Equity > peak {
			peak = p.Equity
			continue
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// longestFlat returns the longest stretch (ms) between successive equity
// highs, including the tail after the final high.
func longestFlat(equity []domain.EquityPoint) int64 {
	peak := equity[0].Equity
	peakTime := equity[0].Time
	var longest int64
	for _, p := range equity[1:] {
		if p.Equity > peak {
			peak = p.Equity
			peakTime = p.Time
			continue
		}
		if flat := p.Time - peakTime; flat > longest {
			longest = flat
		}
	}
	return longest
}

func stepReturns(equity []domain.EquityPoint) []float64 {
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}
	return returns
}

func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func computeStddev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// downsideDeviation measures dispersion of negative returns only, against
// a zero target.
func downsideDeviation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		if x < 0 {
			sum += x * x
		}
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// omega is the ratio of summed gains to summed losses around a zero
// threshold.
func omega(xs []float64) float64 {
	var gains, losses float64
	for _, x := range xs {
		if x > 0 {
			gains += x
		} else {
			losses += -x
		}
	}
	if losses == 0 {
		return 0
	}
	return gains / losses
}
