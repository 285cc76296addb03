// Package marketdata supplies instrument universes and daily price
// histories to the simulation. Implementations back the Source interface
// with CSV files, SQL stores or a local cache; consumers never care
// which.
package marketdata

import (
	"context"

	"equity-backtest-lab/internal/domain"
)

// Source provides the tradable universe and per-instrument bar history.
// History returns bars ordered by date ascending; an unknown code yields
// an empty slice, not an error, so thin histories flow through the same
// filtering path as short ones.
type Source interface {
	Universe(ctx context.Context) ([]domain.Instrument, error)
	History(ctx context.Context, code string) ([]domain.PriceBar, error)
}
