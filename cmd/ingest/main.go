// Package main loads instrument and bar CSV files into storage and can
// optionally watch the live quote feed for the loaded universe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/config"
	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/marketdata"
	"equity-backtest-lab/internal/marketdata/stream"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/storage"
	chstore "equity-backtest-lab/internal/storage/clickhouse"
	"equity-backtest-lab/internal/storage/migrations"
	sqlitestore "equity-backtest-lab/internal/storage/sqlite"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	dataDir := flag.String("data-dir", "", "Directory with instruments.csv and bars.csv (overrides config)")
	backend := flag.String("backend", "", "Destination backend: sqlite or clickhouse (overrides config)")
	sqlitePath := flag.String("sqlite-path", "", "SQLite cache path (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	watch := flag.Bool("watch", false, "After ingest, stream live quotes for the loaded universe")
	feedEndpoint := flag.String("feed-endpoint", "", "Quote feed WebSocket endpoint (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	cfg := loadConfig(*configPath)
	overrideString(&cfg.Storage.DataDir, *dataDir)
	overrideString(&cfg.Storage.Backend, *backend)
	overrideString(&cfg.Storage.SQLitePath, *sqlitePath)
	overrideString(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	overrideString(&cfg.Feed.Endpoint, *feedEndpoint)

	logger := newLogger(cfg.Logging)

	if cfg.Storage.DataDir == "" {
		logger.Fatal("--data-dir is required")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Infof("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
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

	instruments, bars, err := marketdata.LoadDir(cfg.Storage.DataDir)
	if err != nil {
		observability.RecordIngestError("read_csv")
		logger.Fatalf("Read CSV data: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"instruments": len(instruments),
		"bars":        len(bars),
	}).Info("Loaded CSV data")

	instStore, barStore, cleanup, err := openStores(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("Open storage: %v", err)
	}
	defer cleanup()

	if err := instStore.InsertBulk(ctx, instruments); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Warn("Instruments already ingested, skipping")
		} else {
			observability.RecordIngestError("instruments")
			logger.Fatalf("Store instruments: %v", err)
		}
	}
	if err := barStore.InsertBulk(ctx, bars); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Warn("Bars already ingested, skipping")
		} else {
			observability.RecordIngestError("bars")
			logger.Fatalf("Store bars: %v", err)
		}
	}
	observability.RecordIngest(len(instruments), len(bars))

	minDate, maxDate, err := barStore.GetDateRange(ctx)
	if err == nil && !minDate.IsZero() {
		logger.WithFields(logrus.Fields{
			"from": minDate.Format("2006-01-02"),
			"to":   maxDate.Format("2006-01-02"),
		}).Info("Ingest complete")
	} else {
		logger.Info("Ingest complete")
	}

	if *watch {
		if err := watchQuotes(ctx, cfg.Feed.Endpoint, instruments, logger); err != nil && ctx.Err() == nil {
			logger.Fatalf("Quote feed: %v", err)
		}
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

// openStores builds the destination stores. The sqlite backend holds
// both instruments and bars; clickhouse takes the bars while the
// universe still lands in the SQLite cache.
func openStores(ctx context.Context, cfg config.Storage) (storage.InstrumentStore, storage.BarStore, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "", "sqlite":
		if cfg.SQLitePath == "" {
			return nil, nil, noop, fmt.Errorf("sqlite backend needs --sqlite-path")
		}
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		return sqlitestore.NewInstrumentStore(db), sqlitestore.NewBarStore(db), func() { db.Close() }, nil

	case "clickhouse":
		if cfg.ClickhouseDSN == "" || cfg.SQLitePath == "" {
			return nil, nil, noop, fmt.Errorf("clickhouse backend needs --clickhouse-dsn and --sqlite-path for the universe")
		}
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			db.Close()
			return nil, nil, noop, err
		}
		cleanup := func() {
			conn.Close()
			db.Close()
		}
		return sqlitestore.NewInstrumentStore(db), chstore.NewBarStore(conn), cleanup, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// watchQuotes streams live ticks for the ingested universe until the
// context is canceled.
func watchQuotes(ctx context.Context, endpoint string, instruments []*domain.Instrument, logger *logrus.Logger) error {
	if endpoint == "" {
		return fmt.Errorf("--feed-endpoint is required with --watch")
	}

	client, err := stream.Dial(ctx, endpoint, nil, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	codes := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		codes = append(codes, inst.Code)
	}
	if err := client.Subscribe(codes...); err != nil {
		return err
	}
	logger.WithField("codes", len(codes)).Info("Watching live quotes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case quote, ok := <-client.Quotes():
			if !ok {
				return fmt.Errorf("quote feed closed")
			}
			observability.RecordQuote()
			logger.WithFields(logrus.Fields{
				"code":   quote.Code,
				"price":  quote.Price,
				"volume": quote.Volume,
			}).Info("Quote")
		}
	}
}
