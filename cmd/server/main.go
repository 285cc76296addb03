// Package main serves stored backtest results over HTTP: run listings,
// per-run reports and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/config"
	"equity-backtest-lab/internal/observability"
	"equity-backtest-lab/internal/reporting"
	"equity-backtest-lab/internal/storage"
	"equity-backtest-lab/internal/storage/migrations"
	pgstore "equity-backtest-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	listenAddr := flag.String("listen", ":8080", "HTTP listen address")

	flag.Parse()

	cfg := loadConfig(*configPath)
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}

	logger := newLogger(cfg.Logging)

	if cfg.Storage.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Apply migrations: %v", err)
	}

	generator := reporting.NewGenerator(pgstore.NewRunStore(pool), cfg.BacktestConfig().AnnualRiskFreeRate)
	srv := &server{generator: generator, log: logger}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /runs", srv.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", srv.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/report", srv.handleRunReport)

	httpServer := &http.Server{
		Addr:         *listenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Shutdown: %v", err)
		}
		cancel()
	}()

	logger.Infof("Listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Info("Shutdown complete")
}

type server struct {
	generator *reporting.Generator
	log       *logrus.Logger
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	rows, err := s.generator.Comparison(r.Context())
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	writeJSON(w, rows)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.generator.Generate(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "get run", err)
		return
	}
	writeJSON(w, report)
}

func (s *server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.generator.Generate(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "run report", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(reporting.RenderMarkdown(report)))
}

func (s *server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.WithError(err).Error(op)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
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
