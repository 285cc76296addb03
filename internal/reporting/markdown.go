package reporting

import (
	"fmt"
	"strings"
	"time"
)

const reportDateLayout = "2006-01-02"

// RenderMarkdown renders a single-run report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Run.StrategyName))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run ID: `%s`\n\n", r.Run.RunID))

	// Run Parameters
	sb.WriteString("## Run Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Period | %s to %s |\n",
		r.Run.StartDate.Format(reportDateLayout), r.Run.EndDate.Format(reportDateLayout)))
	sb.WriteString(fmt.Sprintf("| Rebalance | %s |\n", r.Run.Frequency))
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", r.Run.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Final Value | %.2f |\n", r.Run.FinalValue))
	sb.WriteString("\n")

	// Performance
	m := r.Metrics
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", m.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| Annualized Return | %.2f%% |\n", m.AnnualizedReturn*100))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", m.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", m.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", m.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Information Ratio | %.4f |\n", m.InformationRatio))
	sb.WriteString(fmt.Sprintf("| Volatility | %.4f |\n", m.Volatility))
	sb.WriteString(fmt.Sprintf("| Max Losing Streak | %d |\n", m.MaxLosingStreak))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", m.TradeCount))
	sb.WriteString(fmt.Sprintf("| Days | %d |\n", m.Days))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("**Score: %d/100 (%s)**\n\n", m.Score, m.Rating))

	// Equity Curve
	sb.WriteString("## Equity Curve\n\n")
	if len(r.Snapshots) > 0 {
		sb.WriteString("| Date | Value | Cash | Positions |\n")
		sb.WriteString("|------|-------|------|----------|\n")
		for _, s := range r.Snapshots {
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f | %d |\n",
				s.Date.Format(reportDateLayout), s.Value, s.Cash, s.Positions))
		}
	} else {
		sb.WriteString("No snapshots recorded.\n")
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Date | Action | Code | Shares | Price | Cost |\n")
		sb.WriteString("|------|--------|------|--------|-------|------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.2f | %.2f |\n",
				t.Date.Format(reportDateLayout), t.Action, t.Code, t.Shares, t.Price, t.Cost))
		}
	} else {
		sb.WriteString("No trades executed.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderComparisonMarkdown renders a cross-run comparison table.
func RenderComparisonMarkdown(rows []ComparisonRow, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Strategy Comparison\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.Format(time.RFC3339)))

	if len(rows) == 0 {
		sb.WriteString("No runs stored.\n")
		return sb.String()
	}

	sb.WriteString("| Strategy | Start | Return | Annualized | MaxDD | Sharpe | WinRate | Score | Rating |\n")
	sb.WriteString("|----------|-------|--------|------------|-------|--------|---------|-------|--------|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %.2f%% | %.2f%% | %.2f%% | %.4f | %.2f%% | %d | %s |\n",
			row.StrategyName, row.StartDate.Format(reportDateLayout),
			row.TotalReturn*100, row.AnnualizedReturn*100, row.MaxDrawdown*100,
			row.SharpeRatio, row.WinRate*100, row.Score, row.Rating))
	}
	sb.WriteString("\n")

	return sb.String()
}
