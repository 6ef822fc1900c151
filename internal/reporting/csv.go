package reporting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"backtest-lab/internal/domain"
)

// csvPlaces is the fixed decimal precision of rendered CSV values.
// Rounding through decimal rather than %f keeps output independent of
// printf float quirks.
const csvPlaces = 8

func csvFloat(v float64) string {
	return decimal.NewFromFloat(v).Round(csvPlaces).String()
}

// RenderTradesCSV renders the trade log as a CSV string.
func RenderTradesCSV(trades []*domain.ClosedTrade) string {
	var sb strings.Builder

	sb.WriteString("trade_id,route_key,strategy_id,side,quantity,entry_price,exit_price,")
	sb.WriteString("opened_at,closed_at,realized_pnl,fees\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%d,%d,%s,%s\n",
			t.TradeID,
			t.RouteKey,
			t.StrategyID,
			t.Side,
			csvFloat(t.Quantity),
			csvFloat(t.EntryPrice),
			csvFloat(t.ExitPrice),
			t.OpenedAt,
			t.ClosedAt,
			csvFloat(t.RealizedPnl),
			csvFloat(t.Fees),
		))
	}

	return sb.String()
}

// RenderEquityCSV renders the equity curve as a CSV string.
func RenderEquityCSV(points []domain.EquityPoint) string {
	var sb strings.Builder

	sb.WriteString("time_ms,equity\n")
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%d,%s\n", p.Time, csvFloat(p.Equity)))
	}

	return sb.String()
}
