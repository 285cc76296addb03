package strategy

import (
	"equity-backtest-lab/internal/indicator"
)

// GrowthParams tunes the breakout entry gate for the multi-factor growth
// strategy.
type GrowthParams struct {
	MinMomentum20D   float64
	MinMomentum60D   float64
	MinRSI           float64
	MaxRSI           float64
	MinVolumeRatio   float64
	MinPricePosition float64
	MaxVolatility    float64
}

// DefaultGrowthParams returns the standard growth thresholds.
func DefaultGrowthParams() GrowthParams {
	return GrowthParams{
		MinMomentum20D:   0.05,
		MinMomentum60D:   0.10,
		MinRSI:           45,
		MaxRSI:           80,
		MinVolumeRatio:   1.2,
		MinPricePosition: 0.4,
		MaxVolatility:    0.6,
	}
}

// Growth buys instruments breaking out on sustained medium-term momentum
// with volume confirmation, and ranks them by a weighted factor
// composite.
type Growth struct {
	params  GrowthParams
	factors []Factor
}

var _ Strategy = (*Growth)(nil)

// NewGrowth creates the growth strategy with the given thresholds.
func NewGrowth(params GrowthParams) *Growth {
	return &Growth{
		params: params,
		factors: []Factor{
			{
				Name:   "momentum_20d",
				Weight: 0.30,
				Score: func(s *indicator.Snapshot) float64 {
					return clamp100(at(s, indicator.MomentumName(20)) * 200)
				},
			},
			{
				Name:   "momentum_60d",
				Weight: 0.25,
				Score: func(s *indicator.Snapshot) float64 {
					return clamp100(at(s, indicator.MomentumName(60)) * 100)
				},
			},
			{
				Name:   "rsi",
				Weight: 0.20,
				Score: func(s *indicator.Snapshot) float64 {
					return rsiFactorScore(at(s, indicator.NameRSI))
				},
			},
			{
				Name:   "volume_ratio",
				Weight: 0.15,
				Score: func(s *indicator.Snapshot) float64 {
					return clamp100((at(s, indicator.NameVolumeRatio) - 1) * 50)
				},
			},
			{
				Name:   "price_position",
				Weight: 0.10,
				Score: func(s *indicator.Snapshot) float64 {
					return clamp100(at(s, indicator.NamePricePosition) * 100)
				},
			},
		},
	}
}

// rsiFactorScore prefers a strong but not overheated RSI: a linear ramp
// between 50 and 80, a steep penalty above 80, and nothing below 50.
func rsiFactorScore(rsi float64) float64 {
	switch {
	case rsi > 80:
		return clamp100(100 - (rsi-80)*5)
	case rsi >= 50:
		return clamp100((rsi - 50) / 30 * 100)
	default:
		return 0
	}
}

// Name implements Strategy.
func (g *Growth) Name() string { return "growth" }

// Describe implements Strategy.
func (g *Growth) Describe() string {
	return "breakout: sustained 20/60-day momentum with volume confirmation, ranked by factor composite"
}

// Qualify implements Strategy.
func (g *Growth) Qualify(snap *indicator.Snapshot) bool {
	if !snap.Has(
		indicator.NamePrice,
		indicator.MAName(20), indicator.MAName(60),
		indicator.NameRSI,
		indicator.MomentumName(20), indicator.MomentumName(60),
		indicator.NameMACDHist,
		indicator.NameVolatility,
		indicator.NameVolumeRatio,
		indicator.NamePricePosition,
	) {
		return false
	}

	p := g.params
	rsi := at(snap, indicator.NameRSI)
	price := at(snap, indicator.NamePrice)
	ma20 := at(snap, indicator.MAName(20))
	ma60 := at(snap, indicator.MAName(60))

	return at(snap, indicator.MomentumName(20)) >= p.MinMomentum20D &&
		at(snap, indicator.MomentumName(60)) >= p.MinMomentum60D &&
		rsi >= p.MinRSI && rsi <= p.MaxRSI &&
		at(snap, indicator.NameVolumeRatio) >= p.MinVolumeRatio &&
		at(snap, indicator.NamePricePosition) >= p.MinPricePosition &&
		price > ma20 && ma20 > ma60 &&
		at(snap, indicator.NameMACDHist) > 0 &&
		at(snap, indicator.NameVolatility) <= p.MaxVolatility
}

// Score implements Strategy.
func (g *Growth) Score(snap *indicator.Snapshot) float64 {
	return CompositeScore(g.factors, snap)
}
