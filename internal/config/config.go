// Package config loads the YAML configuration file and applies
// environment variable overrides. File values override the built-in
// defaults, environment variables override the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"equity-backtest-lab/internal/domain"
)

// Config is the top-level configuration for the backtest lab.
type Config struct {
	Run      Run      `yaml:"run"`
	Backtest Backtest `yaml:"backtest"`
	Storage  Storage  `yaml:"storage"`
	Feed     Feed     `yaml:"feed"`
	Logging  Logging  `yaml:"logging"`
}

// Run identifies one backtest: the strategy and the simulated period.
type Run struct {
	Strategy       string  `yaml:"strategy"`
	StartDate      string  `yaml:"start_date"`
	EndDate        string  `yaml:"end_date"`
	Frequency      string  `yaml:"frequency"`
	InitialCapital float64 `yaml:"initial_capital"`
	MinScore       float64 `yaml:"min_score"`
}

// Backtest holds simulation parameters. Zero values fall back to the
// defaults from DefaultBacktestConfig; cash_reserve uses a pointer so
// an explicit 0 is distinguishable from unset.
type Backtest struct {
	MaxPositions int      `yaml:"max_positions"`
	MinDataDays  int      `yaml:"min_data_days"`
	CashReserve  *float64 `yaml:"cash_reserve"`
	LotSize      int64    `yaml:"lot_size"`
	RiskFreeRate float64  `yaml:"risk_free_rate"`
	Workers      int      `yaml:"workers"`
	Costs        Costs    `yaml:"costs"`
}

// Costs holds the transaction cost model parameters.
type Costs struct {
	CommissionRate float64 `yaml:"commission_rate"`
	MinCommission  float64 `yaml:"min_commission"`
	StampTaxRate   float64 `yaml:"stamp_tax_rate"`
}

// Storage selects the persistence backend and its endpoints.
type Storage struct {
	Backend       string `yaml:"backend"` // memory, sqlite, postgres, clickhouse
	SQLitePath    string `yaml:"sqlite_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	DataDir       string `yaml:"data_dir"` // directory with CSV files for ingest
}

// Feed holds the live quote feed endpoint.
type Feed struct {
	Endpoint string `yaml:"endpoint"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML configuration file at path and applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

const dateLayout = "2006-01-02"

// Range parses the simulated period. Dates use the YYYY-MM-DD layout.
func (r Run) Range() (start, end time.Time, err error) {
	start, err = time.ParseInLocation(dateLayout, r.StartDate, time.UTC)
	if err != nil {
		return start, end, fmt.Errorf("parse start_date: %w", err)
	}
	end, err = time.ParseInLocation(dateLayout, r.EndDate, time.UTC)
	if err != nil {
		return start, end, fmt.Errorf("parse end_date: %w", err)
	}
	return start, end, nil
}

// ParseFrequency parses the rebalance cadence, defaulting to monthly
// when unset.
func (r Run) ParseFrequency() (domain.Frequency, error) {
	if r.Frequency == "" {
		return domain.FrequencyMonthly, nil
	}
	return domain.ParseFrequency(r.Frequency)
}

// BacktestConfig merges the file values over the built-in defaults.
func (c *Config) BacktestConfig() domain.BacktestConfig {
	out := domain.DefaultBacktestConfig()

	if c.Run.InitialCapital > 0 {
		out.InitialCapital = c.Run.InitialCapital
	}
	if c.Backtest.MaxPositions > 0 {
		out.MaxPositions = c.Backtest.MaxPositions
	}
	if c.Backtest.MinDataDays > 0 {
		out.MinDataDays = c.Backtest.MinDataDays
	}
	if c.Backtest.CashReserve != nil {
		out.CashReserve = *c.Backtest.CashReserve
	}
	if c.Backtest.LotSize > 0 {
		out.LotSize = c.Backtest.LotSize
	}
	if c.Backtest.RiskFreeRate > 0 {
		out.AnnualRiskFreeRate = c.Backtest.RiskFreeRate
	}
	if c.Backtest.Costs.CommissionRate > 0 {
		out.Costs.CommissionRate = c.Backtest.Costs.CommissionRate
	}
	if c.Backtest.Costs.MinCommission > 0 {
		out.Costs.MinCommission = c.Backtest.Costs.MinCommission
	}
	if c.Backtest.Costs.StampTaxRate > 0 {
		out.Costs.StampTaxRate = c.Backtest.Costs.StampTaxRate
	}

	return out
}
