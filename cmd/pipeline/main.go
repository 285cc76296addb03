// Package main runs the full evaluation pipeline: it backtests several
// strategies over the same period and data, optionally persists every
// run and prints a comparison table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/backtest"
	"equity-backtest-lab/internal/config"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/metrics"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/reporting"
	chstore "equity-backtest-lab/internal/storage/clickhouse"
	"equity-backtest-lab/internal/storage/memory"
	"equity-backtest-lab/internal/storage/migrations"
	pgstore "equity-backtest-lab/internal/storage/postgres"
	sqlitestore "equity-backtest-lab/internal/storage/sqlite"
	"equity-backtest-lab/internal/strategy"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	strategies := flag.String("strategies", "momentum,value,growth", "Comma-separated strategies to evaluate")
	startDate := flag.String("start", "", "Start date YYYY-MM-DD (overrides config)")
	endDate := flag.String("end", "", "End date YYYY-MM-DD (overrides config)")
	frequency := flag.String("frequency", "", "Rebalance frequency (overrides config)")

	// Storage
	backend := flag.String("backend", "", "Market data backend: memory, sqlite, clickhouse (overrides config)")
	dataDir := flag.String("data-dir", "", "CSV directory for the memory backend")
	sqlitePath := flag.String("sqlite-path", "", "SQLite cache path")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for run persistence")
	persist := flag.Bool("persist", false, "Persist every run result to PostgreSQL")

	// Output
	outputCSV := flag.Bool("csv", false, "Output the comparison as CSV instead of Markdown")

	flag.Parse()

	cfg := loadConfig(*configPath)
	overrideString(&cfg.Run.StartDate, *startDate)
	overrideString(&cfg.Run.EndDate, *endDate)
	overrideString(&cfg.Run.Frequency, *frequency)
	overrideString(&cfg.Storage.Backend, *backend)
	overrideString(&cfg.Storage.DataDir, *dataDir)
	overrideString(&cfg.Storage.SQLitePath, *sqlitePath)
	overrideString(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	overrideString(&cfg.Storage.PostgresDSN, *postgresDSN)

	logger := newLogger(cfg.Logging)

	types := parseStrategies(*strategies, logger)
	if len(types) == 0 {
		logger.Fatal("--strategies must name at least one of momentum, value, growth")
	}

	start, end, err := cfg.Run.Range()
	if err != nil {
		logger.Fatalf("Invalid run period: %v", err)
	}
	freq, err := cfg.Run.ParseFrequency()
	if err != nil {
		logger.Fatalf("Invalid frequency: %s", cfg.Run.Frequency)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, shutting down...", sig)
		cancel()
	}()

	source, closeSource, err := openSource(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("Open market data: %v", err)
	}
	defer closeSource()

	var pool *pgstore.Pool
	if *persist {
		if cfg.Storage.PostgresDSN == "" {
			logger.Fatal("--postgres-dsn is required with --persist")
		}
		pool, err = pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("Connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Apply migrations: %v", err)
		}
	}

	bc := cfg.BacktestConfig()
	riskFree := bc.AnnualRiskFreeRate

	var rows []reporting.ComparisonRow
	for _, st := range types {
		strat, err := strategy.FromConfig(strategy.Config{Type: st})
		if err != nil {
			logger.Fatalf("Build strategy %s: %v", st, err)
		}

		engine := backtest.New(backtest.Options{
			Config:   bc,
			Strategy: strat,
			Source:   source,
			MinScore: cfg.Run.MinScore,
			Workers:  cfg.Backtest.Workers,
			Logger:   logger,
		})

		logger.WithField("strategy", strat.Name()).Info("Running backtest")
		runStart := time.Now()
		result, err := engine.Run(ctx, start, end, freq)
		if err != nil {
			observability.RecordRun(strat.Name(), "error", time.Since(runStart).Seconds())
			logger.Fatalf("Backtest %s failed: %v", strat.Name(), err)
		}
		observability.RecordRun(strat.Name(), "ok", time.Since(runStart).Seconds())

		if pool != nil {
			if err := pgstore.NewRunStore(pool).Save(ctx, result); err != nil {
				logger.Fatalf("Persist run %s: %v", result.RunID, err)
			}
		}

		m := metrics.Compute(result, riskFree)
		rows = append(rows, reporting.ComparisonRow{
			RunID:            result.RunID,
			StrategyName:     result.StrategyName,
			StartDate:        result.StartDate,
			TotalReturn:      m.TotalReturn,
			AnnualizedReturn: m.AnnualizedReturn,
			MaxDrawdown:      m.MaxDrawdown,
			SharpeRatio:      m.SharpeRatio,
			WinRate:          m.WinRate,
			Score:            m.Score,
			Rating:           m.Rating,
		})
	}

	if *outputCSV {
		fmt.Print(reporting.RenderComparisonCSV(rows))
		return
	}
	fmt.Print(reporting.RenderComparisonMarkdown(rows, time.Now().UTC()))
}

func parseStrategies(list string, logger *logrus.Logger) []strategy.Type {
	var types []strategy.Type
	seen := make(map[strategy.Type]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		st, err := strategy.ParseType(name)
		if err != nil {
			logger.Fatalf("Invalid strategy: %s. Must be momentum, value, or growth", name)
		}
		if !seen[st] {
			seen[st] = true
			types = append(types, st)
		}
	}
	return types
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return &config.Config{}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logrus.Fatalf("Load config %s: %v", path, err)
	}
	return cfg
}

func overrideString(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

func newLogger(cfg config.Logging) *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// openSource builds the market data source for the configured backend.
func openSource(ctx context.Context, cfg config.Storage) (marketdata.Source, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "", "memory":
		if cfg.DataDir == "" {
			return nil, noop, fmt.Errorf("memory backend needs --data-dir with instruments.csv and bars.csv")
		}
		instruments, bars, err := marketdata.LoadDir(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		instStore := memory.NewInstrumentStore()
		barStore := memory.NewBarStore()
		if err := instStore.InsertBulk(ctx, instruments); err != nil {
			return nil, noop, err
		}
		if err := barStore.InsertBulk(ctx, bars); err != nil {
			return nil, noop, err
		}
		return marketdata.NewStoreSource(instStore, barStore), noop, nil

	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, noop, fmt.Errorf("sqlite backend needs --sqlite-path")
		}
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		source := marketdata.NewStoreSource(sqlitestore.NewInstrumentStore(db), sqlitestore.NewBarStore(db))
		return source, func() { db.Close() }, nil

	case "clickhouse":
		if cfg.ClickhouseDSN == "" || cfg.SQLitePath == "" {
			return nil, noop, fmt.Errorf("clickhouse backend needs --clickhouse-dsn and --sqlite-path for the universe")
		}
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		source := marketdata.NewStoreSource(sqlitestore.NewInstrumentStore(db), chstore.NewBarStore(conn))
		cleanup := func() {
			conn.Close()
			db.Close()
		}
		return source, cleanup, nil

	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
