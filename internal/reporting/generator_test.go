package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
	"equity-backtest-lab/internal/storage/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRun(runID, strategy string, start time.Time, finalValue float64) *domain.RunResult {
	return &domain.RunResult{
		RunID:          runID,
		StrategyName:   strategy,
		StartDate:      start,
		EndDate:        start.AddDate(0, 2, 0),
		Frequency:      domain.FrequencyMonthly,
		InitialCapital: 1_000_000,
		Snapshots: []domain.PortfolioSnapshot{
			{Date: start, Value: 1_020_000, Cash: 120_000, Positions: 3},
			{Date: start.AddDate(0, 1, 0), Value: 1_050_000, Cash: 90_000, Positions: 4},
			{Date: start.AddDate(0, 2, 0), Value: finalValue, Cash: 100_000, Positions: 4},
		},
		Trades: []domain.Trade{
			{Date: start, Action: domain.ActionBuy, Code: "600519", Shares: 100, Price: 1700, Cost: 51},
		},
		FinalValue: finalValue,
	}
}

func newGenerator(t *testing.T, runs ...*domain.RunResult) *Generator {
	t.Helper()
	store := memory.NewRunStore()
	for _, run := range runs {
		require.NoError(t, store.Save(context.Background(), run))
	}
	clock := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	return NewGenerator(store, 0.03).WithClock(func() time.Time { return clock })
}

func TestGenerate(t *testing.T) {
	run := sampleRun("run-1", "momentum", day(2023, 1, 1), 1_100_000)
	g := newGenerator(t, run)

	report, err := g.Generate(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.Run.RunID)
	assert.Equal(t, "momentum", report.Run.StrategyName)
	assert.Equal(t, domain.FrequencyMonthly, report.Run.Frequency)
	assert.Equal(t, 1_100_000.0, report.Run.FinalValue)
	assert.Len(t, report.Snapshots, 3)
	assert.Len(t, report.Trades, 1)

	assert.InDelta(t, 0.10, report.Metrics.TotalReturn, 1e-12)
	assert.Equal(t, "momentum", report.Metrics.StrategyName)
	assert.NotEmpty(t, report.Metrics.Rating)
}

func TestGenerate_NotFound(t *testing.T) {
	g := newGenerator(t)

	_, err := g.Generate(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestComparison_NewestFirst(t *testing.T) {
	g := newGenerator(t,
		sampleRun("run-old", "momentum", day(2022, 1, 1), 1_100_000),
		sampleRun("run-new", "value", day(2023, 1, 1), 950_000),
	)

	rows, err := g.Comparison(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "run-new", rows[0].RunID, "newest start date first")
	assert.Equal(t, "value", rows[0].StrategyName)
	assert.InDelta(t, -0.05, rows[0].TotalReturn, 1e-12)
	assert.InDelta(t, 0.10, rows[1].TotalReturn, 1e-12)
	assert.NotEmpty(t, rows[0].Rating)
}

func TestRenderMarkdown(t *testing.T) {
	g := newGenerator(t, sampleRun("run-1", "momentum", day(2023, 1, 1), 1_100_000))

	report, err := g.Generate(context.Background(), "run-1")
	require.NoError(t, err)

	md := RenderMarkdown(report)
	assert.Contains(t, md, "# Backtest Report: momentum")
	assert.Contains(t, md, "Run ID: `run-1`")
	assert.Contains(t, md, "| Total Return | 10.00% |")
	assert.Contains(t, md, "| 2023-01-01 | 1020000.00 | 120000.00 | 3 |")
	assert.Contains(t, md, "| 2023-01-01 | buy | 600519 | 100 | 1700.00 | 51.00 |")
}

func TestRenderMarkdown_EmptyRun(t *testing.T) {
	report := &Report{
		GeneratedAt: day(2023, 7, 1),
		Run:         RunSummary{RunID: "empty", StrategyName: "growth", Frequency: domain.FrequencyMonthly},
	}

	md := RenderMarkdown(report)
	assert.Contains(t, md, "No snapshots recorded.")
	assert.Contains(t, md, "No trades executed.")
}

func TestRenderComparisonMarkdown(t *testing.T) {
	rows := []ComparisonRow{{
		RunID: "run-1", StrategyName: "momentum", StartDate: day(2023, 1, 1),
		TotalReturn: 0.10, AnnualizedReturn: 0.25, MaxDrawdown: -0.05,
		SharpeRatio: 1.2, WinRate: 0.6, Score: 75, Rating: "good",
	}}

	md := RenderComparisonMarkdown(rows, day(2023, 7, 1))
	assert.Contains(t, md, "# Strategy Comparison")
	assert.Contains(t, md, "| momentum | 2023-01-01 | 10.00% | 25.00% | -5.00% | 1.2000 | 60.00% | 75 | good |")

	empty := RenderComparisonMarkdown(nil, day(2023, 7, 1))
	assert.Contains(t, empty, "No runs stored.")
}

func TestRenderCSV(t *testing.T) {
	run := sampleRun("run-1", "momentum", day(2023, 1, 1), 1_100_000)

	trades := RenderTradesCSV(run.Trades)
	assert.Contains(t, trades, "date,action,code,shares,price,cost\n")
	assert.Contains(t, trades, "2023-01-01,buy,600519,100,1700.0000,51.0000\n")

	snaps := RenderSnapshotsCSV(run.Snapshots)
	assert.Contains(t, snaps, "date,value,cash,positions\n")
	assert.Contains(t, snaps, "2023-01-01,1020000.0000,120000.0000,3\n")

	comparison := RenderComparisonCSV([]ComparisonRow{{
		RunID: "run-1", StrategyName: "momentum", StartDate: day(2023, 1, 1),
		TotalReturn: 0.10, Score: 75, Rating: "good",
	}})
	assert.Contains(t, comparison, "run_id,strategy_name,start_date,")
	assert.Contains(t, comparison, "run-1,momentum,2023-01-01,0.100000,")
}
