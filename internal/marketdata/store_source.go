package marketdata

import (
	"context"
	"fmt"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// StoreSource serves market data from the storage layer. It works
// against any InstrumentStore/BarStore pair, so the same backtest code
// runs off the in-memory stores, the SQLite cache or ClickHouse.
type StoreSource struct {
	instruments storage.InstrumentStore
	bars        storage.BarStore
}

// NewStoreSource creates a Source backed by the given stores.
func NewStoreSource(instruments storage.InstrumentStore, bars storage.BarStore) *StoreSource {
	return &StoreSource{instruments: instruments, bars: bars}
}

var _ Source = (*StoreSource)(nil)

// Universe returns every stored instrument.
func (s *StoreSource) Universe(ctx context.Context) ([]domain.Instrument, error) {
	stored, err := s.instruments.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	universe := make([]domain.Instrument, 0, len(stored))
	for _, inst := range stored {
		universe = append(universe, *inst)
	}
	return universe, nil
}

// History returns the full bar history for code, ordered by date ASC.
// A code with no stored bars yields an empty slice.
func (s *StoreSource) History(ctx context.Context, code string) ([]domain.PriceBar, error) {
	stored, err := s.bars.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", code, err)
	}

	bars := make([]domain.PriceBar, 0, len(stored))
	for _, b := range stored {
		bars = append(bars, *b)
	}
	return bars, nil
}
