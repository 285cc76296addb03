// Package main renders reports from persisted backtest runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/config"
	"equity-backtest-lab/internal/reporting"
	pgstore "equity-backtest-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	runID := flag.String("run-id", "", "Run to report on (empty: compare all stored runs)")
	strategyName := flag.String("strategy", "", "With no --run-id, limit the comparison to one strategy")
	format := flag.String("format", "markdown", "Output format: markdown, csv, json")
	output := flag.String("out", "", "Output file (empty: stdout)")

	flag.Parse()

	cfg := loadConfig(*configPath)
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}

	logger := newLogger(cfg.Logging)

	if cfg.Storage.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	riskFreeRate := cfg.BacktestConfig().AnnualRiskFreeRate
	generator := reporting.NewGenerator(pgstore.NewRunStore(pool), riskFreeRate)

	var rendered string
	if *runID != "" {
		rendered, err = renderRun(ctx, generator, *runID, *format)
	} else {
		rendered, err = renderComparison(ctx, generator, *strategyName, *format)
	}
	if err != nil {
		logger.Fatalf("Generate report: %v", err)
	}

	if *output == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*output, []byte(rendered), 0o644); err != nil {
		logger.Fatalf("Write %s: %v", *output, err)
	}
	logger.WithField("path", *output).Info("Report written")
}

func renderRun(ctx context.Context, g *reporting.Generator, runID, format string) (string, error) {
	report, err := g.Generate(ctx, runID)
	if err != nil {
		return "", err
	}

	switch format {
	case "markdown":
		return reporting.RenderMarkdown(report), nil
	case "csv":
		// Trade log plus equity curve in one document.
		return reporting.RenderTradesCSV(report.Trades) + "\n" + reporting.RenderSnapshotsCSV(report.Snapshots), nil
	case "json":
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out) + "\n", nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func renderComparison(ctx context.Context, g *reporting.Generator, strategyName, format string) (string, error) {
	rows, err := g.Comparison(ctx)
	if err != nil {
		return "", err
	}

	if strategyName != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if row.StrategyName == strategyName {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	switch format {
	case "markdown":
		return reporting.RenderComparisonMarkdown(rows, time.Now().UTC()), nil
	case "csv":
		return reporting.RenderComparisonCSV(rows), nil
	case "json":
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out) + "\n", nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
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
