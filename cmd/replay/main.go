// Package main replays persisted backtest runs against the current
// market data and reports whether the stored results reproduce.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/config"
	"equity-backtest-lab/internal/marketdata"
	chstore "equity-backtest-lab/internal/storage/clickhouse"
	"equity-backtest-lab/internal/storage/memory"
	pgstore "equity-backtest-lab/internal/storage/postgres"
	sqlitestore "equity-backtest-lab/internal/storage/sqlite"
	"equity-backtest-lab/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	runID := flag.String("run-id", "", "Run to replay (empty: replay all stored runs)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	backend := flag.String("backend", "", "Market data backend: memory, sqlite, clickhouse (overrides config)")
	dataDir := flag.String("data-dir", "", "CSV directory for the memory backend")
	sqlitePath := flag.String("sqlite-path", "", "SQLite cache path")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	minScore := flag.Float64("min-score", 0, "Minimum candidate score used by the original runs")

	flag.Parse()

	cfg := loadConfig(*configPath)
	overrideString(&cfg.Storage.PostgresDSN, *postgresDSN)
	overrideString(&cfg.Storage.Backend, *backend)
	overrideString(&cfg.Storage.DataDir, *dataDir)
	overrideString(&cfg.Storage.SQLitePath, *sqlitePath)
	overrideString(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	if *minScore > 0 {
		cfg.Run.MinScore = *minScore
	}

	logger := newLogger(cfg.Logging)

	if cfg.Storage.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
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

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	source, closeSource, err := openSource(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("Open market data: %v", err)
	}
	defer closeSource()

	verifier := verification.NewRunVerifier(verification.RunVerifierOptions{
		RunStore: pgstore.NewRunStore(pool),
		Source:   source,
		Config:   cfg.BacktestConfig(),
		MinScore: cfg.Run.MinScore,
		Workers:  cfg.Backtest.Workers,
		Logger:   logger,
	})

	if *runID != "" {
		result, err := verifier.VerifyRun(ctx, *runID)
		if err != nil {
			logger.Fatalf("Replay failed: %v", err)
		}
		printResult(result)
		if !result.Match {
			os.Exit(1)
		}
		return
	}

	report, err := verifier.VerifyAll(ctx)
	if err != nil {
		logger.Fatalf("Replay failed: %v", err)
	}

	fmt.Printf("Replayed %d runs: %d matched, %d divergent\n",
		report.TotalRuns, report.MatchedRuns, report.DivergentRuns)
	for i := range report.Results {
		printResult(&report.Results[i])
	}
	if report.DivergentRuns > 0 {
		os.Exit(1)
	}
}

func printResult(r *verification.Result) {
	if r.Match {
		fmt.Printf("run %s: OK\n", r.RunID)
		return
	}
	fmt.Printf("run %s: DIVERGED (%d fields)\n", r.RunID, len(r.Divergences))
	for _, d := range r.Divergences {
		fmt.Printf("  %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
	}
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
