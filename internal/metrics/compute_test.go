package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"equity-backtest-lab/internal/domain"
)

func snapshotSeries(values ...float64) []domain.PortfolioSnapshot {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := make([]domain.PortfolioSnapshot, len(values))
	for i, v := range values {
		snaps[i] = domain.PortfolioSnapshot{Date: base.AddDate(0, i, 0), Value: v}
	}
	return snaps
}

func testRun(values ...float64) *domain.RunResult {
	snaps := snapshotSeries(values...)
	run := &domain.RunResult{
		StrategyName:   "momentum",
		Frequency:      domain.FrequencyMonthly,
		InitialCapital: 1_000_000,
		Snapshots:      snaps,
	}
	if len(snaps) > 0 {
		run.StartDate = snaps[0].Date
		run.EndDate = snaps[len(snaps)-1].Date
		run.FinalValue = snaps[len(snaps)-1].Value
	}
	return run
}

func TestCompute_CoreMetrics(t *testing.T) {
	// Monthly values over Jan 1 to Apr 1: +5% total over 90 days with
	// one losing period.
	run := testRun(1_010_000, 1_030_000, 1_020_000, 1_050_000)

	r := Compute(run, 0.03)

	assert.InDelta(t, 0.05, r.TotalReturn, 1e-12)
	assert.Equal(t, 90, r.Days)
	assert.InDelta(t, math.Pow(1.05, 365.0/90)-1, r.AnnualizedReturn, 1e-12)
	assert.InDelta(t, -10_000.0/1_030_000, r.MaxDrawdown, 1e-12)
	assert.InDelta(t, 2.0/3.0, r.WinRate, 1e-12)
	assert.Equal(t, 1, r.MaxLosingStreak)
	assert.Equal(t, 0, r.TradeCount)
	assert.InDelta(t, 1_050_000.0, r.FinalValue, 1e-9)
}

func TestCompute_RatioMetrics(t *testing.T) {
	run := testRun(1_010_000, 1_030_000, 1_020_000, 1_050_000)

	returns := []float64{
		20_000.0 / 1_010_000,
		-10_000.0 / 1_030_000,
		30_000.0 / 1_020_000,
	}
	m := (returns[0] + returns[1] + returns[2]) / 3
	variance := 0.0
	for _, x := range returns {
		variance += (x - m) * (x - m)
	}
	sd := math.Sqrt(variance / 2)

	r := Compute(run, 0.03)

	assert.InDelta(t, sd*math.Sqrt(12), r.Volatility, 1e-12, "annualized by rebalance frequency")
	assert.InDelta(t, m/sd*math.Sqrt(3), r.InformationRatio, 1e-12)

	// The Sharpe ratio nets out the risk-free rate spread over the
	// period count; a constant shift leaves the deviation unchanged.
	periodRF := 0.03 / 3
	assert.InDelta(t, (m-periodRF)/sd*math.Sqrt(3), r.SharpeRatio, 1e-12)
}

func TestCompute_MonotonicGrowthHasZeroDrawdown(t *testing.T) {
	run := testRun(1_010_000, 1_020_000, 1_080_000)

	r := Compute(run, 0.03)

	assert.Zero(t, r.MaxDrawdown)
	assert.InDelta(t, 1.0, r.WinRate, 1e-12)
	assert.Zero(t, r.MaxLosingStreak)
}

func TestCompute_LosingStreakSpansConsecutivePeriodsOnly(t *testing.T) {
	run := testRun(1_000_000, 990_000, 980_000, 985_000, 970_000, 960_000, 950_000)

	r := Compute(run, 0.03)
	assert.Equal(t, 3, r.MaxLosingStreak)
}

func TestCompute_EmptyHistoryYieldsZeroedMetrics(t *testing.T) {
	r := Compute(testRun(), 0.03)

	assert.Zero(t, r.TotalReturn)
	assert.Zero(t, r.AnnualizedReturn)
	assert.Zero(t, r.MaxDrawdown)
	assert.Zero(t, r.WinRate)
	assert.Zero(t, r.SharpeRatio)
	assert.Zero(t, r.Volatility)
	assert.Zero(t, r.Days)
}

func TestCompute_SinglePointHistory(t *testing.T) {
	r := Compute(testRun(1_100_000), 0.03)

	// A single snapshot defines the total return but none of the period
	// statistics: zero elapsed days also means no annualization.
	assert.InDelta(t, 0.10, r.TotalReturn, 1e-12)
	assert.Zero(t, r.AnnualizedReturn)
	assert.Zero(t, r.WinRate)
	assert.Zero(t, r.SharpeRatio)
	assert.Zero(t, r.Volatility)
}

func TestCompute_Idempotent(t *testing.T) {
	run := testRun(1_010_000, 1_030_000, 1_020_000, 1_050_000)

	first := Compute(run, 0.03)
	second := Compute(run, 0.03)
	assert.Equal(t, first, second)
}

func TestScoreAndRating(t *testing.T) {
	top := Report{
		AnnualizedReturn: 0.25,
		MaxDrawdown:      -0.04,
		SharpeRatio:      2.5,
		WinRate:          0.65,
		MaxLosingStreak:  1,
	}
	assert.Equal(t, 100, score(top))
	assert.Equal(t, "excellent", Rating(score(top)))

	mid := Report{
		AnnualizedReturn: 0.12,
		MaxDrawdown:      -0.12,
		SharpeRatio:      1.2,
		WinRate:          0.52,
		MaxLosingStreak:  4,
	}
	// 20 + 15 + 10 + 10 + 5.
	assert.Equal(t, 60, score(mid))
	assert.Equal(t, "average", Rating(60))

	assert.Equal(t, "needs optimization", Rating(10))
}
