package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL. Snapshots and
// trades are stored as JSONB next to the scalar run columns: they are
// only ever read back whole, never queried row by row.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

var _ storage.RunStore = (*RunStore)(nil)

// Save inserts or replaces a run keyed by its run ID.
func (s *RunStore) Save(ctx context.Context, run *domain.RunResult) (err error) {
	defer observeQuery("save_run", time.Now(), &err)

	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	snapshots, err := json.Marshal(run.Snapshots)
	if err != nil {
		return fmt.Errorf("marshal snapshots: %w", err)
	}
	trades, err := json.Marshal(run.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}

	query := `
		INSERT INTO runs (
			run_id, strategy_name, start_date, end_date, frequency,
			initial_capital, final_value, snapshots, trades
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			strategy_name = EXCLUDED.strategy_name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			frequency = EXCLUDED.frequency,
			initial_capital = EXCLUDED.initial_capital,
			final_value = EXCLUDED.final_value,
			snapshots = EXCLUDED.snapshots,
			trades = EXCLUDED.trades
	`

	_, err = s.pool.Exec(ctx, query,
		run.RunID, run.StrategyName, run.StartDate, run.EndDate, string(run.Frequency),
		run.InitialCapital, run.FinalValue, snapshots, trades,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

const selectRunColumns = `
	SELECT run_id, strategy_name, start_date, end_date, frequency,
	       initial_capital, final_value, snapshots, trades
	FROM runs
`

// GetByID retrieves one run. Returns ErrNotFound if not present.
func (s *RunStore) GetByID(ctx context.Context, runID string) (result *domain.RunResult, err error) {
	defer observeQuery("get_run", time.Now(), &err)

	row := s.pool.QueryRow(ctx, selectRunColumns+` WHERE run_id = $1`, runID)

	run, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return run, nil
}

// GetByStrategy retrieves all runs for a strategy, newest start date first.
func (s *RunStore) GetByStrategy(ctx context.Context, strategyName string) (result []*domain.RunResult, err error) {
	defer observeQuery("get_runs_by_strategy", time.Now(), &err)

	rows, err := s.pool.Query(ctx,
		selectRunColumns+` WHERE strategy_name = $1 ORDER BY start_date DESC, run_id ASC`,
		strategyName,
	)
	if err != nil {
		return nil, fmt.Errorf("get runs by strategy: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// GetAll retrieves all stored runs, newest start date first.
func (s *RunStore) GetAll(ctx context.Context) (result []*domain.RunResult, err error) {
	defer observeQuery("get_all_runs", time.Now(), &err)

	rows, err := s.pool.Query(ctx,
		selectRunColumns+` ORDER BY start_date DESC, run_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("get all runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunResult, error) {
	var run domain.RunResult
	var frequency string
	var snapshots, trades []byte

	err := row.Scan(
		&run.RunID, &run.StrategyName, &run.StartDate, &run.EndDate, &frequency,
		&run.InitialCapital, &run.FinalValue, &snapshots, &trades,
	)
	if err != nil {
		return nil, err
	}

	run.Frequency = domain.Frequency(frequency)
	run.StartDate = domain.Day(run.StartDate)
	run.EndDate = domain.Day(run.EndDate)
	if err := json.Unmarshal(snapshots, &run.Snapshots); err != nil {
		return nil, fmt.Errorf("unmarshal snapshots: %w", err)
	}
	if err := json.Unmarshal(trades, &run.Trades); err != nil {
		return nil, fmt.Errorf("unmarshal trades: %w", err)
	}
	return &run, nil
}

type runRows interface {
	rowScanner
	Next() bool
	Err() error
}

func collectRuns(rows runRows) ([]*domain.RunResult, error) {
	var result []*domain.RunResult
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

// observeQuery records latency and failures for one store operation.
// ErrNotFound is an answer, not a failure.
func observeQuery(operation string, start time.Time, err *error) {
	e := *err
	if errors.Is(e, storage.ErrNotFound) {
		e = nil
	}
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), e)
}
