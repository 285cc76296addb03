// Package main runs one backtest: it loads market data, simulates the
// configured strategy over the requested period and prints the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
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
	strategyName := flag.String("strategy", "", "Strategy: momentum, value, growth (overrides config)")
	startDate := flag.String("start", "", "Start date YYYY-MM-DD (overrides config)")
	endDate := flag.String("end", "", "End date YYYY-MM-DD (overrides config)")
	frequency := flag.String("frequency", "", "Rebalance frequency: monthly, quarterly, yearly (overrides config)")
	capital := flag.Float64("capital", 0, "Initial capital (overrides config)")
	minScore := flag.Float64("min-score", 0, "Minimum candidate score (overrides config)")
	workers := flag.Int("workers", 0, "Concurrent instrument evaluations (0 = one per CPU)")

	// Storage
	backend := flag.String("backend", "", "Market data backend: memory, sqlite, clickhouse (overrides config)")
	dataDir := flag.String("data-dir", "", "CSV directory for the memory backend")
	sqlitePath := flag.String("sqlite-path", "", "SQLite cache path")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for run persistence")
	persist := flag.Bool("persist", false, "Persist the run result to PostgreSQL")

	// Output
	outputJSON := flag.Bool("json", false, "Output the raw run result as JSON")

	flag.Parse()

	cfg := loadConfig(*configPath)
	overrideString(&cfg.Run.Strategy, *strategyName)
	overrideString(&cfg.Run.StartDate, *startDate)
	overrideString(&cfg.Run.EndDate, *endDate)
	overrideString(&cfg.Run.Frequency, *frequency)
	overrideString(&cfg.Storage.Backend, *backend)
	overrideString(&cfg.Storage.DataDir, *dataDir)
	overrideString(&cfg.Storage.SQLitePath, *sqlitePath)
	overrideString(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	overrideString(&cfg.Storage.PostgresDSN, *postgresDSN)
	if *capital > 0 {
		cfg.Run.InitialCapital = *capital
	}
	if *minScore > 0 {
		cfg.Run.MinScore = *minScore
	}
	if *workers > 0 {
		cfg.Backtest.Workers = *workers
	}

	logger := newLogger(cfg.Logging)

	if cfg.Run.Strategy == "" {
		logger.Fatal("--strategy is required")
	}
	strategyType, err := strategy.ParseType(cfg.Run.Strategy)
	if err != nil {
		logger.Fatalf("Invalid strategy: %s. Must be momentum, value, or growth", cfg.Run.Strategy)
	}
	strat, err := strategy.FromConfig(strategy.Config{Type: strategyType})
	if err != nil {
		logger.Fatalf("Build strategy: %v", err)
	}

	start, end, err := cfg.Run.Range()
	if err != nil {
		logger.Fatalf("Invalid run period: %v", err)
	}
	freq, err := cfg.Run.ParseFrequency()
	if err != nil {
		logger.Fatalf("Invalid frequency: %s. Must be monthly, quarterly, or yearly", cfg.Run.Frequency)
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

	bc := cfg.BacktestConfig()
	engine := backtest.New(backtest.Options{
		Config:   bc,
		Strategy: strat,
		Source:   source,
		MinScore: cfg.Run.MinScore,
		Workers:  cfg.Backtest.Workers,
		Logger:   logger,
	})

	logger.WithFields(logrus.Fields{
		"strategy":  strat.Name(),
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
		"frequency": freq,
	}).Info("Starting backtest")

	runStart := time.Now()
	result, err := engine.Run(ctx, start, end, freq)
	if err != nil {
		observability.RecordRun(strat.Name(), "error", time.Since(runStart).Seconds())
		logger.Fatalf("Backtest failed: %v", err)
	}
	observability.RecordRun(strat.Name(), "ok", time.Since(runStart).Seconds())

	if *persist {
		if cfg.Storage.PostgresDSN == "" {
			logger.Fatal("--postgres-dsn is required with --persist")
		}
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("Connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Apply migrations: %v", err)
		}
		if err := pgstore.NewRunStore(pool).Save(ctx, result); err != nil {
			logger.Fatalf("Persist run: %v", err)
		}
		logger.WithField("run_id", result.RunID).Info("Run persisted")
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	report := &reporting.Report{
		GeneratedAt: time.Now().UTC(),
		Run: reporting.RunSummary{
			RunID:          result.RunID,
			StrategyName:   result.StrategyName,
			StartDate:      result.StartDate,
			EndDate:        result.EndDate,
			Frequency:      result.Frequency,
			InitialCapital: result.InitialCapital,
			FinalValue:     result.FinalValue,
		},
		Metrics:   metrics.Compute(result, bc.AnnualRiskFreeRate),
		Snapshots: result.Snapshots,
		Trades:    result.Trades,
	}
	fmt.Print(reporting.RenderMarkdown(report))
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
// The memory backend loads CSV files; sqlite reads the local cache;
// clickhouse reads bars from ClickHouse and the universe from the
// SQLite cache.
func openSource(ctx context.Context, cfg config.Storage) (marketdata.Source, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "", "memory":
		if cfg.DataDir == "" {
			return nil, noop, fmt.Errorf("memory backend needs --data-dir with instruments.csv and bars.csv")
		}
		source, err := loadCSVSource(ctx, cfg.DataDir)
		return source, noop, err

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

// loadCSVSource reads instruments.csv and bars.csv from dir into
// in-memory stores.
func loadCSVSource(ctx context.Context, dir string) (marketdata.Source, error) {
	instruments, bars, err := marketdata.LoadDir(dir)
	if err != nil {
		return nil, err
	}

	instStore := memory.NewInstrumentStore()
	barStore := memory.NewBarStore()
	if err := instStore.InsertBulk(ctx, instruments); err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}
	if err := barStore.InsertBulk(ctx, bars); err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	return marketdata.NewStoreSource(instStore, barStore), nil
}
