package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest-lab/internal/backtest"
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/storage/memory"
	"equity-backtest-lab/internal/strategy"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRun() *domain.RunResult {
	return &domain.RunResult{
		RunID:          "run-1",
		StrategyName:   "momentum",
		StartDate:      day(2023, 1, 1),
		EndDate:        day(2023, 3, 1),
		Frequency:      domain.FrequencyMonthly,
		InitialCapital: 1_000_000,
		Snapshots: []domain.PortfolioSnapshot{
			{Date: day(2023, 1, 1), Value: 1_000_000, Cash: 1_000_000},
			{Date: day(2023, 2, 1), Value: 1_010_000, Cash: 10_000, Positions: 2},
		},
		Trades: []domain.Trade{
			{Date: day(2023, 1, 1), Action: domain.ActionBuy, Code: "A", Shares: 100, Price: 10, Cost: 5},
		},
		FinalValue: 1_010_000,
	}
}

func TestCompareRuns_Identical(t *testing.T) {
	assert.Empty(t, CompareRuns(sampleRun(), sampleRun()))
}

func TestCompareRuns_WithinTolerance(t *testing.T) {
	replayed := sampleRun()
	replayed.FinalValue += 1e-9
	replayed.Snapshots[1].Value += 1e-9

	assert.Empty(t, CompareRuns(sampleRun(), replayed))
}

func TestCompareRuns_Divergences(t *testing.T) {
	replayed := sampleRun()
	replayed.FinalValue += 0.01
	replayed.Snapshots[1].Positions = 3
	replayed.Trades[0].Shares = 200

	divs := CompareRuns(sampleRun(), replayed)
	fields := make([]string, 0, len(divs))
	for _, d := range divs {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"FinalValue", "Snapshots[1].Positions", "Trades[0].Shares"}, fields)
}

func TestCompareRuns_LengthMismatch(t *testing.T) {
	replayed := sampleRun()
	replayed.Snapshots = replayed.Snapshots[:1]
	replayed.Trades = nil

	divs := CompareRuns(sampleRun(), replayed)
	fields := make([]string, 0, len(divs))
	for _, d := range divs {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"Snapshots.len", "Trades.len"}, fields)
}

// flatSource serves one instrument with a flat bar history, long
// enough for the default indicator lookback.
func flatSource(t *testing.T) marketdata.Source {
	t.Helper()
	ctx := context.Background()

	instruments := memory.NewInstrumentStore()
	bars := memory.NewBarStore()
	require.NoError(t, instruments.Insert(ctx, &domain.Instrument{Code: "A", Name: "Alpha"}))

	var history []*domain.PriceBar
	for d := day(2022, 8, 1); !d.After(day(2023, 3, 1)); d = d.AddDate(0, 0, 1) {
		history = append(history, &domain.PriceBar{
			Code: "A", Date: d, Open: 10, High: 10, Low: 10, Close: 10, Volume: 1000,
		})
	}
	require.NoError(t, bars.InsertBulk(ctx, history))

	return marketdata.NewStoreSource(instruments, bars)
}

func runBacktest(t *testing.T, source marketdata.Source) *domain.RunResult {
	t.Helper()

	strat, err := strategy.FromConfig(strategy.Config{Type: strategy.TypeMomentum})
	require.NoError(t, err)

	engine := backtest.New(backtest.Options{
		Config:   domain.DefaultBacktestConfig(),
		Strategy: strat,
		Source:   source,
	})
	result, err := engine.Run(context.Background(), day(2023, 1, 1), day(2023, 3, 1), domain.FrequencyMonthly)
	require.NoError(t, err)
	return result
}

func TestRunVerifier_ReproducesStoredRun(t *testing.T) {
	ctx := context.Background()
	source := flatSource(t)

	stored := runBacktest(t, source)
	runs := memory.NewRunStore()
	require.NoError(t, runs.Save(ctx, stored))

	verifier := NewRunVerifier(RunVerifierOptions{
		RunStore: runs,
		Source:   source,
		Config:   domain.DefaultBacktestConfig(),
	})

	result, err := verifier.VerifyRun(ctx, stored.RunID)
	require.NoError(t, err)
	assert.True(t, result.Match, "divergences: %v", result.Divergences)

	report, err := verifier.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalRuns)
	assert.Equal(t, 1, report.MatchedRuns)
	assert.Equal(t, 0, report.DivergentRuns)
}

func TestRunVerifier_DetectsTamperedRun(t *testing.T) {
	ctx := context.Background()
	source := flatSource(t)

	stored := runBacktest(t, source)
	stored.FinalValue += 500
	runs := memory.NewRunStore()
	require.NoError(t, runs.Save(ctx, stored))

	result, err := verifier(t, runs, source).VerifyRun(ctx, stored.RunID)
	require.NoError(t, err)
	assert.False(t, result.Match)
	require.NotEmpty(t, result.Divergences)
	assert.Equal(t, "FinalValue", result.Divergences[0].Field)
}

func verifier(t *testing.T, runs *memory.RunStore, source marketdata.Source) *RunVerifier {
	t.Helper()
	return NewRunVerifier(RunVerifierOptions{
		RunStore: runs,
		Source:   source,
		Config:   domain.DefaultBacktestConfig(),
	})
}

func TestRunVerifier_UnknownStrategy(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	stored := sampleRun()
	stored.StrategyName = "arbitrage"
	require.NoError(t, runs.Save(ctx, stored))

	_, err := verifier(t, runs, flatSource(t)).VerifyRun(ctx, stored.RunID)
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
}
