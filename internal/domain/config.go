package domain

import (
	"errors"
	"time"
)

// Configuration errors. All of these are fatal and must be raised before
// a run starts.
var (
	ErrNonPositiveCapital   = errors.New("initial capital must be positive")
	ErrNonPositivePositions = errors.New("max positions must be positive")
	ErrNonPositiveLotSize   = errors.New("lot size must be positive")
	ErrInvalidCashReserve   = errors.New("cash reserve must be in [0, 1)")
	ErrInvalidDateRange     = errors.New("end date must not be before start date")
)

// CostConfig holds the transaction cost model parameters.
type CostConfig struct {
	CommissionRate float64 // per-side commission rate on traded amount
	MinCommission  float64 // flat commission floor per trade
	StampTaxRate   float64 // sell-side only
}

// IndicatorConfig holds all technical indicator parameters.
type IndicatorConfig struct {
	LookbackDays int // minimum history length for a snapshot to exist

	MAPeriods []int // simple moving average windows

	RSIPeriod int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	BBPeriod int
	BBStdDev float64

	MomentumPeriods     []int // horizons for relative price change
	VolatilityPeriod    int   // rolling window for realized volatility
	ATRPeriod           int
	PricePositionPeriod int // lookback for high/low range position
	VolumeMAPeriod      int
}

// BacktestConfig holds every parameter the simulation core consumes.
// There are no hidden defaults inside component logic: construct with
// DefaultBacktestConfig and override explicitly.
type BacktestConfig struct {
	InitialCapital float64
	MaxPositions   int
	MinDataDays    int // instruments with fewer bars are filtered out

	CashReserve float64 // fraction of valuation kept in cash at rebalance
	LotSize     int64   // minimum tradable share increment

	Costs     CostConfig
	Indicator IndicatorConfig

	AnnualRiskFreeRate float64 // for Sharpe-style ratios
}

// DefaultBacktestConfig returns the standard A-share parameter set.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital: 1_000_000,
		MaxPositions:   6,
		MinDataDays:    100,
		CashReserve:    0.10,
		LotSize:        100,
		Costs: CostConfig{
			CommissionRate: 0.0003,
			MinCommission:  5,
			StampTaxRate:   0.001,
		},
		Indicator: IndicatorConfig{
			LookbackDays:        60,
			MAPeriods:           []int{5, 10, 20, 60},
			RSIPeriod:           14,
			MACDFast:            12,
			MACDSlow:            26,
			MACDSignal:          9,
			BBPeriod:            20,
			BBStdDev:            2,
			MomentumPeriods:     []int{5, 10, 20, 60},
			VolatilityPeriod:    20,
			ATRPeriod:           14,
			PricePositionPeriod: 60,
			VolumeMAPeriod:      20,
		},
		AnnualRiskFreeRate: 0.03,
	}
}

// Validate checks the fatal configuration invariants for a run over
// [start, end]. Returns the first violation found.
func (c BacktestConfig) Validate(start, end time.Time) error {
	if c.InitialCapital <= 0 {
		return ErrNonPositiveCapital
	}
	if c.MaxPositions <= 0 {
		return ErrNonPositivePositions
	}
	if c.LotSize <= 0 {
		return ErrNonPositiveLotSize
	}
	if c.CashReserve < 0 || c.CashReserve >= 1 {
		return ErrInvalidCashReserve
	}
	if end.Before(start) {
		return ErrInvalidDateRange
	}
	return nil
}
