package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
	. "equity-backtest-lab/internal/storage/postgres"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRun(id, strategy string) *domain.RunResult {
	return &domain.RunResult{
		RunID:          id,
		StrategyName:   strategy,
		StartDate:      day(2022, 1, 1),
		EndDate:        day(2023, 1, 1),
		Frequency:      domain.FrequencyMonthly,
		InitialCapital: 1_000_000,
		Snapshots: []domain.PortfolioSnapshot{
			{Date: day(2022, 2, 1), Value: 1_010_000, Cash: 110_000, Positions: 5},
			{Date: day(2022, 3, 1), Value: 1_025_000, Cash: 95_000, Positions: 6},
		},
		Trades: []domain.Trade{
			{Date: day(2022, 2, 1), Action: domain.ActionBuy, Code: "600519", Shares: 200, Price: 1700, Cost: 102},
			{Date: day(2022, 3, 1), Action: domain.ActionSell, Code: "600519", Shares: 200, Price: 1750, Cost: 455},
		},
		FinalValue: 1_025_000,
	}
}

func TestRunStore_SaveAndGetByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	run := sampleRun("run-pg-1", "momentum")
	require.NoError(t, store.Save(ctx, run))

	got, err := store.GetByID(ctx, "run-pg-1")
	require.NoError(t, err)

	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.StrategyName, got.StrategyName)
	assert.True(t, got.StartDate.Equal(run.StartDate))
	assert.True(t, got.EndDate.Equal(run.EndDate))
	assert.Equal(t, run.Frequency, got.Frequency)
	assert.Equal(t, run.InitialCapital, got.InitialCapital)
	assert.Equal(t, run.FinalValue, got.FinalValue)
	require.Len(t, got.Snapshots, 2)
	assert.Equal(t, run.Snapshots[0].Value, got.Snapshots[0].Value)
	require.Len(t, got.Trades, 2)
	assert.Equal(t, run.Trades[1].Action, got.Trades[1].Action)
	assert.Equal(t, run.Trades[1].Shares, got.Trades[1].Shares)
}

func TestRunStore_SaveReplacesSameRunID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	require.NoError(t, store.Save(ctx, sampleRun("run-pg-2", "momentum")))

	updated := sampleRun("run-pg-2", "momentum")
	updated.FinalValue = 950_000
	updated.Snapshots = updated.Snapshots[:1]
	require.NoError(t, store.Save(ctx, updated))

	got, err := store.GetByID(ctx, "run-pg-2")
	require.NoError(t, err)
	assert.Equal(t, 950_000.0, got.FinalValue)
	assert.Len(t, got.Snapshots, 1)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "re-saving must replace, not duplicate")
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_GetByStrategyOrdering(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	older := sampleRun("run-pg-old", "momentum")
	older.StartDate = day(2021, 1, 1)
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, sampleRun("run-pg-new", "momentum")))
	require.NoError(t, store.Save(ctx, sampleRun("run-pg-other", "value")))

	got, err := store.GetByStrategy(ctx, "momentum")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-pg-new", got[0].RunID, "newest start date first")
	assert.Equal(t, "run-pg-old", got[1].RunID)
}

func TestRunStore_RejectsInvalidRun(t *testing.T) {
	store := NewRunStore(nil)
	assert.ErrorIs(t, store.Save(context.Background(), nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Save(context.Background(), &domain.RunResult{}), storage.ErrInvalidInput)
}
