package reporting

import (
	"context"
	"fmt"
	"time"

	"equity-backtest-lab/internal/metrics"
	"equity-backtest-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runs         storage.RunStore
	riskFreeRate float64
	now          func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator. riskFreeRate is the annual
// risk-free rate used for Sharpe-style ratios.
func NewGenerator(runs storage.RunStore, riskFreeRate float64) *Generator {
	return &Generator{
		runs:         runs,
		riskFreeRate: riskFreeRate,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the full report for one stored run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	return &Report{
		GeneratedAt: g.now(),
		Run: RunSummary{
			RunID:          run.RunID,
			StrategyName:   run.StrategyName,
			StartDate:      run.StartDate,
			EndDate:        run.EndDate,
			Frequency:      run.Frequency,
			InitialCapital: run.InitialCapital,
			FinalValue:     run.FinalValue,
		},
		Metrics:   metrics.Compute(run, g.riskFreeRate),
		Snapshots: run.Snapshots,
		Trades:    run.Trades,
	}, nil
}

// Comparison summarizes every stored run, newest first.
func (g *Generator) Comparison(ctx context.Context) ([]ComparisonRow, error) {
	runs, err := g.runs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	rows := make([]ComparisonRow, 0, len(runs))
	for _, run := range runs {
		m := metrics.Compute(run, g.riskFreeRate)
		rows = append(rows, ComparisonRow{
			RunID:            run.RunID,
			StrategyName:     run.StrategyName,
			StartDate:        run.StartDate,
			TotalReturn:      m.TotalReturn,
			AnnualizedReturn: m.AnnualizedReturn,
			MaxDrawdown:      m.MaxDrawdown,
			SharpeRatio:      m.SharpeRatio,
			WinRate:          m.WinRate,
			Score:            m.Score,
			Rating:           m.Rating,
		})
	}
	return rows, nil
}
