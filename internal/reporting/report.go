// Package reporting renders backtest results as Markdown and CSV.
package reporting

import (
	"time"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/metrics"
)

// Report is the full result document for a single backtest run.
type Report struct {
	GeneratedAt time.Time

	Run     RunSummary
	Metrics metrics.Report

	// Equity curve and trade log, in chronological order.
	Snapshots []domain.PortfolioSnapshot
	Trades    []domain.Trade
}

// RunSummary identifies the run and its parameters.
type RunSummary struct {
	RunID          string
	StrategyName   string
	StartDate      time.Time
	EndDate        time.Time
	Frequency      domain.Frequency
	InitialCapital float64
	FinalValue     float64
}

// ComparisonRow is one run in a cross-strategy comparison table.
type ComparisonRow struct {
	RunID            string
	StrategyName     string
	StartDate        time.Time
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	SharpeRatio      float64
	WinRate          float64
	Score            int
	Rating           string
}
