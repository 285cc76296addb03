package verification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/backtest"
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/storage"
	"equity-backtest-lab/internal/strategy"
)

// RunVerifier replays stored runs through a fresh engine. The supplied
// configuration must match the one used for the original runs; only
// the initial capital is taken from the stored run itself.
type RunVerifier struct {
	runs     storage.RunStore
	source   marketdata.Source
	config   domain.BacktestConfig
	minScore float64
	workers  int
	log      *logrus.Logger
}

// RunVerifierOptions contains configuration for creating a RunVerifier.
type RunVerifierOptions struct {
	RunStore storage.RunStore
	Source   marketdata.Source
	Config   domain.BacktestConfig
	MinScore float64
	Workers  int
	Logger   *logrus.Logger
}

// NewRunVerifier creates a new RunVerifier.
func NewRunVerifier(opts RunVerifierOptions) *RunVerifier {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RunVerifier{
		runs:     opts.RunStore,
		source:   opts.Source,
		config:   opts.Config,
		minScore: opts.MinScore,
		workers:  opts.Workers,
		log:      logger,
	}
}

// VerifyRun replays a single stored run and compares the results.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string) (*Result, error) {
	stored, err := v.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return v.replay(ctx, stored)
}

// VerifyAll replays every stored run and returns a batch report.
func (v *RunVerifier) VerifyAll(ctx context.Context) (*Report, error) {
	runs, err := v.runs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	report := &Report{TotalRuns: len(runs)}
	for _, stored := range runs {
		result, err := v.replay(ctx, stored)
		if err != nil {
			return nil, err
		}
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

func (v *RunVerifier) replay(ctx context.Context, stored *domain.RunResult) (*Result, error) {
	strategyType, err := strategy.ParseType(stored.StrategyName)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", stored.RunID, err)
	}
	strat, err := strategy.FromConfig(strategy.Config{Type: strategyType})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", stored.RunID, err)
	}

	cfg := v.config
	cfg.InitialCapital = stored.InitialCapital

	engine := backtest.New(backtest.Options{
		Config:   cfg,
		Strategy: strat,
		Source:   v.source,
		MinScore: v.minScore,
		Workers:  v.workers,
		Logger:   v.log,
	})

	replayed, err := engine.Run(ctx, stored.StartDate, stored.EndDate, stored.Frequency)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", stored.RunID, err)
	}

	divergences := CompareRuns(stored, replayed)
	result := &Result{
		RunID:       stored.RunID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}

	v.log.WithFields(logrus.Fields{
		"run_id":      stored.RunID,
		"match":       result.Match,
		"divergences": len(divergences),
	}).Info("Run replayed")

	return result, nil
}
