package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/indicator"
)

// priceStrategy qualifies everything with a price and scores by it, so
// fixtures steer selection through their closes.
type priceStrategy struct{}

func (priceStrategy) Name() string     { return "price" }
func (priceStrategy) Describe() string { return "scores by last close" }

func (priceStrategy) Qualify(snap *indicator.Snapshot) bool {
	return snap.Has(indicator.NamePrice)
}

func (priceStrategy) Score(snap *indicator.Snapshot) float64 {
	v, _ := snap.Get(indicator.NamePrice)
	return v
}

// rejectAllStrategy never qualifies anything.
type rejectAllStrategy struct{}

func (rejectAllStrategy) Name() string                      { return "reject-all" }
func (rejectAllStrategy) Describe() string                  { return "qualifies nothing" }
func (rejectAllStrategy) Qualify(*indicator.Snapshot) bool  { return false }
func (rejectAllStrategy) Score(*indicator.Snapshot) float64 { return 0 }

type fakeSource struct {
	instruments []domain.Instrument
	histories   map[string][]domain.PriceBar
}

func (f *fakeSource) Universe(context.Context) ([]domain.Instrument, error) {
	return f.instruments, nil
}

func (f *fakeSource) History(_ context.Context, code string) ([]domain.PriceBar, error) {
	return f.histories[code], nil
}

// flatBars emits one bar per day over [from, to] at a constant close.
func flatBars(code string, from, to time.Time, close float64) []domain.PriceBar {
	var bars []domain.PriceBar
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		bars = append(bars, domain.PriceBar{
			Code: code, Date: day,
			Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1000,
		})
	}
	return bars
}

func testBacktestConfig() domain.BacktestConfig {
	cfg := domain.DefaultBacktestConfig()
	cfg.MaxPositions = 2
	cfg.MinDataDays = 4
	cfg.Indicator = domain.IndicatorConfig{
		LookbackDays:        3,
		MAPeriods:           []int{2},
		RSIPeriod:           2,
		MACDFast:            2,
		MACDSlow:            3,
		MACDSignal:          2,
		BBPeriod:            3,
		BBStdDev:            2,
		MomentumPeriods:     []int{2},
		VolatilityPeriod:    2,
		ATRPeriod:           2,
		PricePositionPeriod: 3,
		VolumeMAPeriod:      2,
	}
	return cfg
}

func TestRun_SinglePositionFullCycle(t *testing.T) {
	src := &fakeSource{
		instruments: []domain.Instrument{{Code: "A", Name: "Alpha"}},
		histories: map[string][]domain.PriceBar{
			"A": flatBars("A", d(2022, 12, 25), d(2023, 3, 5), 10),
		},
	}
	cfg := testBacktestConfig()
	eng := New(Options{Config: cfg, Strategy: priceStrategy{}, Source: src})

	res, err := eng.Run(context.Background(), d(2023, 1, 1), d(2023, 3, 31), domain.FrequencyMonthly)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "price", res.StrategyName)
	require.Len(t, res.Snapshots, 3)
	assert.Equal(t, d(2023, 1, 1), res.Snapshots[0].Date)
	assert.Equal(t, d(2023, 3, 1), res.Snapshots[2].Date)

	// First rebalance: 90% of 1,000,000 at 10.00 in lots of 100 is
	// 90,000 shares, 900,000 amount, 270 commission.
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, domain.ActionBuy, tr.Action)
	assert.Equal(t, int64(90_000), tr.Shares)
	assert.InDelta(t, 270.0, tr.Cost, 1e-9)

	// With a flat price the target share count only shrinks (the book
	// lost the commission), and selected positions are never trimmed.
	for _, snap := range res.Snapshots {
		assert.InDelta(t, 999_730.0, snap.Value, 1e-9)
		assert.Equal(t, 1, snap.Positions)
	}
	assert.InDelta(t, 999_730.0, res.FinalValue, 1e-9)
}

func TestRun_RotatesOutOfDroppedSelection(t *testing.T) {
	// A is the top pick in January at 20, collapses to 5, and February's
	// rebalance must rotate the book into B.
	aBars := flatBars("A", d(2022, 12, 25), d(2023, 1, 31), 20)
	aBars = append(aBars, flatBars("A", d(2023, 2, 1), d(2023, 3, 5), 5)...)

	src := &fakeSource{
		instruments: []domain.Instrument{{Code: "A"}, {Code: "B"}},
		histories: map[string][]domain.PriceBar{
			"A": aBars,
			"B": flatBars("B", d(2022, 12, 25), d(2023, 3, 5), 10),
		},
	}
	cfg := testBacktestConfig()
	cfg.MaxPositions = 1
	eng := New(Options{Config: cfg, Strategy: priceStrategy{}, Source: src})

	res, err := eng.Run(context.Background(), d(2023, 1, 1), d(2023, 3, 31), domain.FrequencyMonthly)
	require.NoError(t, err)

	// Buy A in January, sell A and buy B in February, hold through March.
	require.Len(t, res.Trades, 3)
	assert.Equal(t, domain.ActionBuy, res.Trades[0].Action)
	assert.Equal(t, "A", res.Trades[0].Code)
	assert.Equal(t, int64(45_000), res.Trades[0].Shares)

	assert.Equal(t, domain.ActionSell, res.Trades[1].Action)
	assert.Equal(t, "A", res.Trades[1].Code)
	assert.InDelta(t, 5.0, res.Trades[1].Price, 1e-9)

	assert.Equal(t, domain.ActionBuy, res.Trades[2].Action)
	assert.Equal(t, "B", res.Trades[2].Code)
	assert.Equal(t, int64(29_200), res.Trades[2].Shares)

	// February: cash after selling A is 324,437.50; buying 29,200 B at
	// 10.00 costs 292,087.60.
	require.Len(t, res.Snapshots, 3)
	assert.InDelta(t, 999_730.0, res.Snapshots[0].Value, 1e-6)
	assert.InDelta(t, 324_349.90, res.Snapshots[1].Value, 1e-6)
	assert.InDelta(t, 324_349.90, res.Snapshots[2].Value, 1e-6)
	assert.InDelta(t, res.Snapshots[2].Value, res.FinalValue, 1e-9)
}

func TestRun_EmptySelectionCarriesBookForward(t *testing.T) {
	src := &fakeSource{
		instruments: []domain.Instrument{{Code: "A"}},
		histories: map[string][]domain.PriceBar{
			"A": flatBars("A", d(2022, 12, 25), d(2023, 3, 5), 10),
		},
	}
	eng := New(Options{Config: testBacktestConfig(), Strategy: rejectAllStrategy{}, Source: src})

	res, err := eng.Run(context.Background(), d(2023, 1, 1), d(2023, 3, 31), domain.FrequencyMonthly)
	require.NoError(t, err)

	// One snapshot per period even though nothing ever traded.
	require.Len(t, res.Snapshots, 3)
	for _, snap := range res.Snapshots {
		assert.InDelta(t, 1_000_000.0, snap.Value, 1e-9)
		assert.InDelta(t, 1_000_000.0, snap.Cash, 1e-9)
		assert.Zero(t, snap.Positions)
	}
	assert.Empty(t, res.Trades)
	assert.InDelta(t, 1_000_000.0, res.FinalValue, 1e-9)
}

func TestRun_ValidatesConfigBeforeStarting(t *testing.T) {
	src := &fakeSource{}

	cfg := testBacktestConfig()
	cfg.CashReserve = 1.0
	eng := New(Options{Config: cfg, Strategy: priceStrategy{}, Source: src})
	_, err := eng.Run(context.Background(), d(2023, 1, 1), d(2023, 3, 31), domain.FrequencyMonthly)
	assert.ErrorIs(t, err, domain.ErrInvalidCashReserve)

	eng = New(Options{Config: testBacktestConfig(), Strategy: priceStrategy{}, Source: src})
	_, err = eng.Run(context.Background(), d(2023, 3, 1), d(2023, 1, 1), domain.FrequencyMonthly)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestRun_CanceledContext(t *testing.T) {
	src := &fakeSource{
		instruments: []domain.Instrument{{Code: "A"}},
		histories: map[string][]domain.PriceBar{
			"A": flatBars("A", d(2022, 12, 25), d(2023, 3, 5), 10),
		},
	}
	eng := New(Options{Config: testBacktestConfig(), Strategy: priceStrategy{}, Source: src})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Run(ctx, d(2023, 1, 1), d(2023, 3, 31), domain.FrequencyMonthly)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	src := &fakeSource{
		instruments: []domain.Instrument{{Code: "A"}, {Code: "B"}},
		histories: map[string][]domain.PriceBar{
			"A": flatBars("A", d(2022, 12, 25), d(2023, 3, 5), 12),
			"B": flatBars("B", d(2022, 12, 25), d(2023, 3, 5), 8),
		},
	}
	eng := New(Options{Config: testBacktestConfig(), Strategy: priceStrategy{}, Source: src, Workers: 4})

	first, err := eng.Run(context.Background(), d(2023, 1, 1), d(2023, 3, 31), domain.FrequencyMonthly)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), d(2023, 1, 1), d(2023, 3, 31), domain.FrequencyMonthly)
	require.NoError(t, err)

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Snapshots, second.Snapshots)
}
