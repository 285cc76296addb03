// Package storage defines the persistence interfaces for instruments,
// price bars and finished runs, plus the errors every backend maps its
// driver failures onto. Backends live in subpackages; consumers depend
// only on these interfaces.
package storage

import (
	"context"
	"time"

	"equity-backtest-lab/internal/domain"
)

// InstrumentStore provides access to the instrument universe.
type InstrumentStore interface {
	// Insert adds a new instrument. Returns ErrDuplicateKey if the code exists.
	Insert(ctx context.Context, inst *domain.Instrument) error

	// InsertBulk adds multiple instruments atomically. Fails the entire
	// batch on any duplicate.
	InsertBulk(ctx context.Context, instruments []*domain.Instrument) error

	// GetByCode retrieves one instrument. Returns ErrNotFound if not present.
	GetByCode(ctx context.Context, code string) (*domain.Instrument, error)

	// GetAll retrieves the full universe, ordered by code ASC.
	GetAll(ctx context.Context) ([]*domain.Instrument, error)
}

// BarStore provides access to daily price bar storage.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails the entire batch on a
	// duplicate (code, date).
	InsertBulk(ctx context.Context, bars []*domain.PriceBar) error

	// GetByCode retrieves all bars for an instrument, ordered by date ASC.
	GetByCode(ctx context.Context, code string) ([]*domain.PriceBar, error)

	// GetByDateRange retrieves bars for an instrument within [start, end]
	// (inclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, code string, start, end time.Time) ([]*domain.PriceBar, error)

	// GetDateRange returns the min and max bar dates across all data.
	// Zero times when the store is empty.
	GetDateRange(ctx context.Context) (min, max time.Time, err error)
}

// RunStore provides access to finished simulation runs. Run IDs are
// deterministic over run parameters, so Save replaces rather than
// duplicates when the same backtest is executed again.
type RunStore interface {
	// Save inserts or replaces a run keyed by its run ID.
	Save(ctx context.Context, run *domain.RunResult) error

	// GetByID retrieves one run. Returns ErrNotFound if not present.
	GetByID(ctx context.Context, runID string) (*domain.RunResult, error)

	// GetByStrategy retrieves all runs for a strategy, newest start date first.
	GetByStrategy(ctx context.Context, strategyName string) ([]*domain.RunResult, error)

	// GetAll retrieves all stored runs, newest start date first.
	GetAll(ctx context.Context) ([]*domain.RunResult, error)
}
