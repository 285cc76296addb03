// Package backtest runs the rebalancing simulation: it walks the
// period-start dates of a range, selects candidates as of each date,
// rotates the ledger into them and records a portfolio snapshot per
// period. Everything downstream (metrics, reports, storage) consumes
// the RunResult it produces.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/idhash"
	"equity-backtest-lab/internal/indicator"
	"equity-backtest-lab/internal/ledger"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/strategy"
)

// Options configures a backtest engine.
type Options struct {
	Config   domain.BacktestConfig
	Strategy strategy.Strategy
	Source   marketdata.Source

	// MinScore drops qualified candidates scoring below this floor.
	MinScore float64

	// Workers bounds concurrent instrument evaluations during selection.
	// Zero means one per available CPU.
	Workers int

	Logger *logrus.Logger
}

// Engine drives one or more simulation runs over a market data source.
type Engine struct {
	cfg      domain.BacktestConfig
	strat    strategy.Strategy
	source   marketdata.Source
	selector *strategy.Selector
	log      *logrus.Logger
}

// New creates a backtest engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	selector := strategy.NewSelector(strategy.SelectorOptions{
		Source:       opts.Source,
		Engine:       indicator.NewEngine(opts.Config.Indicator),
		MinDataDays:  opts.Config.MinDataDays,
		MaxPositions: opts.Config.MaxPositions,
		MinScore:     opts.MinScore,
		Workers:      opts.Workers,
		Logger:       logger,
	})
	return &Engine{
		cfg:      opts.Config,
		strat:    opts.Strategy,
		source:   opts.Source,
		selector: selector,
		log:      logger,
	}
}

// Run executes the simulation over [start, end] at the given rebalance
// frequency. The configuration is validated up front; a failed
// individual trade during the run is skipped, never fatal.
func (e *Engine) Run(ctx context.Context, start, end time.Time, freq domain.Frequency) (*domain.RunResult, error) {
	if err := e.cfg.Validate(start, end); err != nil {
		return nil, err
	}

	dates := RebalanceDates(start, end, freq)
	led := ledger.New(e.cfg.InitialCapital, e.cfg.LotSize, e.cfg.Costs, e.log)
	lookup := e.priceLookup(ctx)

	e.log.WithFields(logrus.Fields{
		"strategy":  e.strat.Name(),
		"start":     domain.Day(start).Format("2006-01-02"),
		"end":       domain.Day(end).Format("2006-01-02"),
		"frequency": freq,
		"periods":   len(dates),
	}).Info("backtest starting")

	snapshots := make([]domain.PortfolioSnapshot, 0, len(dates))
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := e.step(ctx, led, date, lookup)
		if err != nil {
			return nil, fmt.Errorf("rebalance at %s: %w", date.Format("2006-01-02"), err)
		}
		snapshots = append(snapshots, snap)

		e.log.WithFields(logrus.Fields{
			"date":      date.Format("2006-01-02"),
			"value":     snap.Value,
			"cash":      snap.Cash,
			"positions": snap.Positions,
		}).Debug("rebalance complete")
	}

	finalValue := e.cfg.InitialCapital
	if len(snapshots) > 0 {
		finalValue = snapshots[len(snapshots)-1].Value
	}

	result := &domain.RunResult{
		RunID:          idhash.RunID(e.strat.Name(), start, end, freq, e.cfg.InitialCapital),
		StrategyName:   e.strat.Name(),
		StartDate:      domain.Day(start),
		EndDate:        domain.Day(end),
		Frequency:      freq,
		InitialCapital: e.cfg.InitialCapital,
		Snapshots:      snapshots,
		Trades:         led.Trades(),
		FinalValue:     finalValue,
	}

	e.log.WithFields(logrus.Fields{
		"run_id":      result.RunID,
		"final_value": result.FinalValue,
		"trades":      len(result.Trades),
	}).Info("backtest finished")

	return result, nil
}

// step performs one rebalance: value the book, pick the new selection,
// rotate out of everything unselected, then size buys off the pre-trade
// valuation. An empty selection carries the book forward unchanged but
// still records a snapshot, so the value series has one point per
// period.
func (e *Engine) step(ctx context.Context, led *ledger.Ledger, date time.Time, lookup ledger.PriceLookup) (domain.PortfolioSnapshot, error) {
	total := led.Valuation(date, lookup)

	candidates, err := e.selector.Select(ctx, e.strat, date)
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	if len(candidates) > 0 {
		e.sellUnselected(led, candidates, date, lookup)
		e.buyToTargets(led, candidates, total, date)
	} else {
		e.log.WithField("date", date.Format("2006-01-02")).Info("no qualifying candidates, holding current book")
	}
	observability.RecordRebalance()

	return domain.PortfolioSnapshot{
		Date:      date,
		Value:     led.Valuation(date, lookup),
		Cash:      led.Cash(),
		Positions: led.PositionCount(),
	}, nil
}

// sellUnselected liquidates every held position that is not in the new
// selection, at the most recent close at or before the rebalance date.
// A position with no available price is held rather than guessed at.
func (e *Engine) sellUnselected(led *ledger.Ledger, candidates []domain.Candidate, date time.Time, lookup ledger.PriceLookup) {
	selected := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		selected[c.Code] = struct{}{}
	}

	for code, shares := range led.Positions() {
		if _, ok := selected[code]; ok {
			continue
		}
		price, ok := lookup(code, date)
		if !ok {
			e.log.WithFields(logrus.Fields{
				"code": code,
				"date": date.Format("2006-01-02"),
			}).Warn("cannot price position for liquidation, holding")
			continue
		}
		if led.Execute(domain.ActionSell, code, price, shares, date) {
			observability.RecordTrade(string(domain.ActionSell))
		}
	}
}

// buyToTargets sizes each selected instrument toward an equal share of
// the investable valuation and buys only the shortfall. Positions
// already at or above target are left alone: selected holdings are
// never trimmed.
func (e *Engine) buyToTargets(led *ledger.Ledger, candidates []domain.Candidate, total float64, date time.Time) {
	target := total * (1 - e.cfg.CashReserve) / float64(len(candidates))
	lot := float64(e.cfg.LotSize)

	for _, c := range candidates {
		if c.Price <= 0 {
			continue
		}
		targetShares := int64(math.Floor(target/(c.Price*lot))) * e.cfg.LotSize
		delta := targetShares - led.Position(c.Code)
		if delta <= 0 {
			continue
		}
		if led.Execute(domain.ActionBuy, c.Code, c.Price, delta, date) {
			observability.RecordTrade(string(domain.ActionBuy))
		}
	}
}

// priceLookup returns a ledger price lookup backed by a per-run history
// cache, resolving the most recent close at or before the asked date.
func (e *Engine) priceLookup(ctx context.Context) ledger.PriceLookup {
	cache := make(map[string][]domain.PriceBar)
	return func(code string, date time.Time) (float64, bool) {
		bars, ok := cache[code]
		if !ok {
			var err error
			bars, err = e.source.History(ctx, code)
			if err != nil {
				e.log.WithError(err).WithField("code", code).Warn("history load failed during valuation")
				bars = nil
			}
			cache[code] = bars
		}
		return domain.LatestCloseAt(bars, date)
	}
}
