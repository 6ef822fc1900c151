package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))

	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Window Start (ms) | %d |\n", r.StartMs))
	sb.WriteString(fmt.Sprintf("| Window End (ms) | %d |\n", r.EndMs))
	sb.WriteString(fmt.Sprintf("| Steps Simulated | %d |\n", r.StepsSimulated))
	sb.WriteString(fmt.Sprintf("| Starting Balance | %.2f |\n", r.StartingBalance))
	sb.WriteString(fmt.Sprintf("| Final Balance | %.2f |\n", r.FinalBalance))
	sb.WriteString("\n")

	sb.WriteString("## Routes\n\n")
	if len(r.Routes) > 0 {
		sb.WriteString("| Exchange | Symbol | Timeframe | Strategy |\n")
		sb.WriteString("|----------|--------|-----------|----------|\n")
		for _, route := range r.Routes {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				route.Exchange, route.Symbol, route.Timeframe, route.Strategy))
		}
	} else {
		sb.WriteString("No routes.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Performance\n\n")
	if m := r.Metrics; m != nil {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Net Profit | %.4f (%.2f%%) |\n", m.NetProfit, m.NetProfitPct))
		sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", m.TotalTrades))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", m.WinRate))
		sb.WriteString(fmt.Sprintf("| Average Win | %.4f |\n", m.AverageWin))
		sb.WriteString(fmt.Sprintf("| Average Loss | %.4f |\n", m.AverageLoss))
		sb.WriteString(fmt.Sprintf("| Profit Factor | %.4f |\n", m.ProfitFactor))
		sb.WriteString(fmt.Sprintf("| Total Fees | %.4f |\n", m.TotalFees))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", m.MaxDrawdown))
		sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", m.SharpeRatio))
		sb.WriteString(fmt.Sprintf("| Sortino Ratio | %.4f |\n", m.SortinoRatio))
		sb.WriteString(fmt.Sprintf("| Calmar Ratio | %.4f |\n", m.CalmarRatio))
		sb.WriteString(fmt.Sprintf("| Omega Ratio | %.4f |\n", m.OmegaRatio))
		sb.WriteString(fmt.Sprintf("| Annual Return | %.4f |\n", m.AnnualReturn))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Wins | %d |\n", m.MaxConsecutive.Wins))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", m.MaxConsecutive.Losses))
	} else {
		sb.WriteString("No metrics available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Trade | Route | Side | Qty | Entry | Exit | Pnl | Fees |\n")
		sb.WriteString("|-------|-------|------|-----|-------|------|-----|------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.6f | %.4f | %.4f | %.4f | %.4f |\n",
				shortID(t.TradeID), t.RouteKey, t.Side,
				t.Quantity, t.EntryPrice, t.ExitPrice, t.RealizedPnl, t.Fees))
		}
	} else {
		sb.WriteString("No trades closed.\n")
	}
	sb.WriteString("\n")

	if len(r.TerminalPositions) > 0 {
		sb.WriteString("## Open Positions at Run End\n\n")
		sb.WriteString("| Route | Side | Qty | Entry | Liquidated At | Unrealized Pnl |\n")
		sb.WriteString("|-------|------|-----|-------|---------------|----------------|\n")
		for _, p := range r.TerminalPositions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.6f | %.4f | %.4f | %.4f |\n",
				p.RouteKey, p.Side, p.Quantity, p.EntryPrice, p.LiquidationPrice, p.UnrealizedPnl))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// shortID truncates a hash ID for table display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
