package reporting

import (
	"fmt"
	"strings"

	"equity-backtest-lab/internal/domain"
)

// RenderTradesCSV renders a trade log as CSV string.
func RenderTradesCSV(trades []domain.Trade) string {
	var sb strings.Builder

	sb.WriteString("date,action,code,shares,price,cost\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%.4f,%.4f\n",
			t.Date.Format(reportDateLayout), t.Action, t.Code, t.Shares, t.Price, t.Cost))
	}

	return sb.String()
}

// RenderSnapshotsCSV renders an equity curve as CSV string.
func RenderSnapshotsCSV(snapshots []domain.PortfolioSnapshot) string {
	var sb strings.Builder

	sb.WriteString("date,value,cash,positions\n")
	for _, s := range snapshots {
		sb.WriteString(fmt.Sprintf("%s,%.4f,%.4f,%d\n",
			s.Date.Format(reportDateLayout), s.Value, s.Cash, s.Positions))
	}

	return sb.String()
}

// RenderComparisonCSV renders cross-run comparison rows as CSV string.
func RenderComparisonCSV(rows []ComparisonRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,strategy_name,start_date,total_return,annualized_return,")
	sb.WriteString("max_drawdown,sharpe_ratio,win_rate,score,rating\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%s\n",
			row.RunID, row.StrategyName, row.StartDate.Format(reportDateLayout),
			row.TotalReturn, row.AnnualizedReturn, row.MaxDrawdown,
			row.SharpeRatio, row.WinRate, row.Score, row.Rating))
	}

	return sb.String()
}
