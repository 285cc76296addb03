package strategy

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/indicator"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/observability"
)

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	Source marketdata.Source
	Engine *indicator.Engine

	// MinDataDays filters out instruments whose history at the target
	// date is too short to trust the indicators.
	MinDataDays int

	// MaxPositions caps the number of returned candidates. Zero means
	// no cap.
	MaxPositions int

	// MinScore drops qualified instruments scoring below this floor.
	MinScore float64

	// Workers bounds concurrent instrument evaluations. Zero or negative
	// means one per available CPU.
	Workers int

	Logger *logrus.Logger
}

// Selector screens a universe against a strategy for one rebalance date.
// Instrument evaluations fan out across a worker pool and are joined
// before ranking, so the result is deterministic: candidates are ordered
// by score descending with universe order breaking ties.
type Selector struct {
	source       marketdata.Source
	engine       *indicator.Engine
	minDataDays  int
	maxPositions int
	minScore     float64
	workers      int
	log          *logrus.Logger
}

// NewSelector creates a selector from options.
func NewSelector(opts SelectorOptions) *Selector {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Selector{
		source:       opts.Source,
		engine:       opts.Engine,
		minDataDays:  opts.MinDataDays,
		maxPositions: opts.MaxPositions,
		minScore:     opts.MinScore,
		workers:      workers,
		log:          logger,
	}
}

// Select evaluates the whole universe as of date and returns the ranked
// candidate list. Instruments with short histories or missing indicators
// are silently skipped; storage errors abort the selection.
func (sel *Selector) Select(ctx context.Context, strat Strategy, date time.Time) ([]domain.Candidate, error) {
	instruments, err := sel.source.Universe(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	// Results are slotted by universe index so ranking ties resolve in
	// universe order regardless of worker scheduling.
	results := make([]*domain.Candidate, len(instruments))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	workers := sel.workers
	if workers > len(instruments) {
		workers = len(instruments)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				cand, err := sel.evaluate(ctx, strat, instruments[i], date)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				results[i] = cand
			}
		}()
	}

feed:
	for i := range instruments {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	observability.RecordCandidates(len(instruments))

	candidates := make([]domain.Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if sel.maxPositions > 0 && len(candidates) > sel.maxPositions {
		candidates = candidates[:sel.maxPositions]
	}

	sel.log.WithFields(logrus.Fields{
		"strategy":   strat.Name(),
		"date":       date.Format("2006-01-02"),
		"universe":   len(instruments),
		"candidates": len(candidates),
	}).Debug("selection complete")

	return candidates, nil
}

// evaluate screens a single instrument. A nil candidate with a nil error
// means the instrument was filtered, not that something went wrong.
func (sel *Selector) evaluate(ctx context.Context, strat Strategy, inst domain.Instrument, date time.Time) (*domain.Candidate, error) {
	bars, err := sel.source.History(ctx, inst.Code)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", inst.Code, err)
	}

	bars = domain.BarsUpTo(bars, date)
	if len(bars) < sel.minDataDays {
		return nil, nil
	}

	snap, err := sel.engine.Compute(bars)
	if errors.Is(err, indicator.ErrInsufficientHistory) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("indicators for %s: %w", inst.Code, err)
	}

	if !strat.Qualify(snap) {
		return nil, nil
	}
	score := strat.Score(snap)
	if score < sel.minScore {
		return nil, nil
	}
	price, ok := snap.Get(indicator.NamePrice)
	if !ok {
		return nil, nil
	}

	return &domain.Candidate{
		Code:       inst.Code,
		Name:       inst.Name,
		Score:      score,
		Price:      price,
		Indicators: snap.Values(),
	}, nil
}
