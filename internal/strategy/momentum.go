package strategy

import (
	"math"

	"equity-backtest-lab/internal/indicator"
)

// MomentumParams tunes the trend-following entry gate. Zero values are
// meaningful thresholds, so callers start from DefaultMomentumParams and
// override fields rather than building the struct from scratch.
type MomentumParams struct {
	MinRSI           float64
	MaxRSI           float64
	MinMomentum5D    float64
	MinMomentum20D   float64
	MinBBPosition    float64
	MaxBBPosition    float64
	MaxVolatility    float64
	MinVolumeRatio   float64
	MinPricePosition float64
}

// DefaultMomentumParams returns the standard momentum thresholds.
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		MinRSI:           20,
		MaxRSI:           75,
		MinMomentum5D:    -0.05,
		MinMomentum20D:   -0.15,
		MinBBPosition:    0.2,
		MaxBBPosition:    0.8,
		MaxVolatility:    0.5,
		MinVolumeRatio:   0.5,
		MinPricePosition: 0.3,
	}
}

// Momentum buys instruments in a confirmed uptrend: aligned moving
// averages, positive MACD histogram and an RSI that is neither washed
// out nor overbought.
type Momentum struct {
	params MomentumParams
}

var _ Strategy = (*Momentum)(nil)

// NewMomentum creates the momentum strategy with the given thresholds.
func NewMomentum(params MomentumParams) *Momentum {
	return &Momentum{params: params}
}

// Name implements Strategy.
func (m *Momentum) Name() string { return "momentum" }

// Describe implements Strategy.
func (m *Momentum) Describe() string {
	return "trend following: aligned moving averages, positive MACD histogram, RSI in range"
}

// Qualify implements Strategy.
func (m *Momentum) Qualify(snap *indicator.Snapshot) bool {
	if !snap.Has(
		indicator.NamePrice,
		indicator.MAName(5), indicator.MAName(10), indicator.MAName(20), indicator.MAName(60),
		indicator.NameRSI,
		indicator.MomentumName(5), indicator.MomentumName(10), indicator.MomentumName(20),
		indicator.NameMACD, indicator.NameMACDSignal, indicator.NameMACDHist,
		indicator.NameBBPosition,
		indicator.NameVolatility,
		indicator.NameVolumeRatio,
		indicator.NamePricePosition,
	) {
		return false
	}

	p := m.params
	price := at(snap, indicator.NamePrice)
	ma5 := at(snap, indicator.MAName(5))
	ma10 := at(snap, indicator.MAName(10))
	ma20 := at(snap, indicator.MAName(20))
	ma60 := at(snap, indicator.MAName(60))
	rsi := at(snap, indicator.NameRSI)

	return price > ma20 &&
		ma5 > ma10 && ma10 > ma20 && ma20 > ma60 &&
		rsi >= p.MinRSI && rsi <= p.MaxRSI &&
		at(snap, indicator.MomentumName(5)) > p.MinMomentum5D &&
		at(snap, indicator.MomentumName(20)) > p.MinMomentum20D &&
		at(snap, indicator.NameMACD) > at(snap, indicator.NameMACDSignal) &&
		at(snap, indicator.NameMACDHist) > 0 &&
		at(snap, indicator.NameBBPosition) >= p.MinBBPosition &&
		at(snap, indicator.NameBBPosition) <= p.MaxBBPosition &&
		at(snap, indicator.NameVolatility) < p.MaxVolatility &&
		at(snap, indicator.NameVolumeRatio) > p.MinVolumeRatio &&
		at(snap, indicator.NamePricePosition) > p.MinPricePosition
}

// Score implements Strategy. Short-horizon momentum dominates the
// ranking, with trend strength above the 20-day average and the MACD
// histogram as confirmation.
func (m *Momentum) Score(snap *indicator.Snapshot) float64 {
	score := at(snap, indicator.MomentumName(5))*20 +
		at(snap, indicator.MomentumName(10))*15 +
		at(snap, indicator.MomentumName(20))*5

	if ma20 := at(snap, indicator.MAName(20)); ma20 > 0 {
		score += (at(snap, indicator.NamePrice)/ma20 - 1) * 25
	}

	score += (80 - math.Abs(at(snap, indicator.NameRSI)-50)) * 0.3
	score += at(snap, indicator.NameMACDHist) * 100
	score += at(snap, indicator.NamePricePosition) * 10
	return score
}
