// Package verification checks the determinism guarantee: two runs of an
// identical configuration over identical data must produce identical
// results. It re-executes a run from scratch and compares every field of
// the outcome.
package verification

import (
	"context"
	"fmt"
	"math"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
)

// FloatTolerance bounds float64 comparisons. Identical runs produce
// bit-identical floats, but stored results may round-trip through a
// database column with less precision.
const FloatTolerance = 1e-7

// FieldDivergence records one mismatch between two run results.
type FieldDivergence struct {
	Field    string
	Expected interface{}
	Actual   interface{}
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: expected %v, got %v", d.Field, d.Expected, d.Actual)
}

// Report is the outcome of one verification.
type Report struct {
	RunID       string
	Match       bool
	Divergences []FieldDivergence
}

// RunFunc executes one backtest run from scratch. The verifier calls it
// twice; both invocations must build fresh engine state.
type RunFunc func(ctx context.Context) (*domain.RunResult, error)

// Verify runs the same configuration twice and compares the results. Any
// divergence means the run is not deterministic, which is always a bug.
func Verify(ctx context.Context, run RunFunc) (*Report, error) {
	first, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("first run: %w", err)
	}
	second, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("second run: %w", err)
	}
	return VerifyAgainst(first, second), nil
}

// VerifyAgainst compares a stored (or previously computed) result with a
// freshly replayed one.
func VerifyAgainst(stored, replayed *domain.RunResult) *Report {
	divergences := CompareRunResults(stored, replayed)
	report := &Report{
		RunID:       stored.RunID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}
	if report.Match {
		observability.RecordVerification("match")
	} else {
		observability.RecordVerification("divergent")
	}
	return report
}

// CompareRunResults returns every field-level divergence between two run
// results. An empty slice means they are equivalent within FloatTolerance.
func CompareRunResults(a, b *domain.RunResult) []FieldDivergence {
	var divs []FieldDivergence

	add := func(field string, expected, actual interface{}) {
		divs = append(divs, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
	addFloat := func(field string, expected, actual float64) {
		if !floatsEqual(expected, actual) {
			add(field, expected, actual)
		}
	}

	if a.RunID != b.RunID {
		add("RunID", a.RunID, b.RunID)
	}
	if a.StepsSimulated != b.StepsSimulated {
		add("StepsSimulated", a.StepsSimulated, b.StepsSimulated)
	}
	addFloat("FinalBalance", a.FinalBalance, b.FinalBalance)

	divs = append(divs, compareTrades(a.ClosedTrades, b.ClosedTrades)...)
	divs = append(divs, compareEquity(a.EquityCurve, b.EquityCurve)...)
	divs = append(divs, compareMetrics(a.Metrics, b.Metrics)...)
	return divs
}

func compareTrades(a, b []*domain.ClosedTrade) []FieldDivergence {
	var divs []FieldDivergence
	if len(a) != len(b) {
		return []FieldDivergence{{Field: "ClosedTrades.len", Expected: len(a), Actual: len(b)}}
	}
	for i := range a {
		prefix := fmt.Sprintf("ClosedTrades[%d]", i)
		x, y := a[i], b[i]
		if x.TradeID != y.TradeID {
			divs = append(divs, FieldDivergence{prefix + ".TradeID", x.TradeID, y.TradeID})
		}
		if x.RouteKey != y.RouteKey {
			divs = append(divs, FieldDivergence{prefix + ".RouteKey", x.RouteKey, y.RouteKey})
		}
		if x.Side != y.Side {
			divs = append(divs, FieldDivergence{prefix + ".Side", x.Side, y.Side})
		}
		if x.OpenedAt != y.OpenedAt {
			divs = append(divs, FieldDivergence{prefix + ".OpenedAt", x.OpenedAt, y.OpenedAt})
		}
		if x.ClosedAt != y.ClosedAt {
			divs = append(divs, FieldDivergence{prefix + ".ClosedAt", x.ClosedAt, y.ClosedAt})
		}
		for _, f := range []struct {
			name string
			x, y float64
		}{
			{"Quantity", x.Quantity, y.Quantity},
			{"EntryPrice", x.EntryPrice, y.EntryPrice},
			{"ExitPrice", x.ExitPrice, y.ExitPrice},
			{"RealizedPnl", x.RealizedPnl, y.RealizedPnl},
			{"Fees", x.Fees, y.Fees},
		} {
			if !floatsEqual(f.x, f.y) {
				divs = append(divs, FieldDivergence{prefix + "." + f.name, f.x, f.y})
			}
		}
	}
	return divs
}

func compareEquity(a, b []domain.EquityPoint) []FieldDivergence {
	if len(a) != len(b) {
		return []FieldDivergence{{Field: "EquityCurve.len", Expected: len(a), Actual: len(b)}}
	}
	var divs []FieldDivergence
	for i := range a {
		if a[i].Time != b[i].Time {
			divs = append(divs, FieldDivergence{fmt.Sprintf("EquityCurve[%d].Time", i), a[i].Time, b[i].Time})
		}
		if !floatsEqual(a[i].Equity, b[i].Equity) {
			divs = append(divs, FieldDivergence{fmt.Sprintf("EquityCurve[%d].Equity", i), a[i].Equity, b[i].Equity})
		}
	}
	return divs
}

func compareMetrics(a, b *domain.Metrics) []FieldDivergence {
	if a == nil || b == nil {
		if a != b {
			return []FieldDivergence{{Field: "Metrics", Expected: a, Actual: b}}
		}
		return nil
	}
	var divs []FieldDivergence
	for _, f := range []struct {
		name string
		x, y float64
	}{
		{"NetProfit", a.NetProfit, b.NetProfit},
		{"NetProfitPct", a.NetProfitPct, b.NetProfitPct},
		{"WinRate", a.WinRate, b.WinRate},
		{"ProfitFactor", a.ProfitFactor, b.ProfitFactor},
		{"TotalFees", a.TotalFees, b.TotalFees},
		{"MaxDrawdown", a.MaxDrawdown, b.MaxDrawdown},
		{"SharpeRatio", a.SharpeRatio, b.SharpeRatio},
		{"SortinoRatio", a.SortinoRatio, b.SortinoRatio},
		{"CalmarRatio", a.CalmarRatio, b.CalmarRatio},
		{"OmegaRatio", a.OmegaRatio, b.OmegaRatio},
		{"AnnualReturn", a.AnnualReturn, b.AnnualReturn},
	} {
		if !floatsEqual(f.x, f.y) {
			divs = append(divs, FieldDivergence{"Metrics." + f.name, f.x, f.y})
		}
	}
	if a.TotalTrades != b.TotalTrades {
		divs = append(divs, FieldDivergence{"Metrics.TotalTrades", a.TotalTrades, b.TotalTrades})
	}
	if a.WinningTrades != b.WinningTrades {
		divs = append(divs, FieldDivergence{"Metrics.WinningTrades", a.WinningTrades, b.WinningTrades})
	}
	return divs
}

func floatsEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= FloatTolerance
}
