package strategy

import (
	"equity-backtest-lab/internal/indicator"
)

// ValueParams tunes the mean-reversion entry gate.
type ValueParams struct {
	MinPricePosition float64
	MaxPricePosition float64
	MaxRSI           float64
	MinBBPosition    float64
	MaxBBPosition    float64
	MaxVolatility    float64
	MinVolumeRatio   float64
}

// DefaultValueParams returns the standard value thresholds.
func DefaultValueParams() ValueParams {
	return ValueParams{
		MinPricePosition: 0.1,
		MaxPricePosition: 0.6,
		MaxRSI:           70,
		MinBBPosition:    0.1,
		MaxBBPosition:    0.5,
		MaxVolatility:    0.4,
		MinVolumeRatio:   0.3,
	}
}

// Value buys instruments trading in the lower part of their recent range
// while the long-term trend is still intact: cheap relative to the range,
// not cheap because the trend broke.
type Value struct {
	params ValueParams
}

var _ Strategy = (*Value)(nil)

// NewValue creates the value strategy with the given thresholds.
func NewValue(params ValueParams) *Value {
	return &Value{params: params}
}

// Name implements Strategy.
func (v *Value) Name() string { return "value" }

// Describe implements Strategy.
func (v *Value) Describe() string {
	return "mean reversion: low range position and band position above an intact long-term average"
}

// Qualify implements Strategy.
func (v *Value) Qualify(snap *indicator.Snapshot) bool {
	if !snap.Has(
		indicator.NamePrice,
		indicator.MAName(60),
		indicator.NameRSI,
		indicator.NameBBPosition,
		indicator.NameVolatility,
		indicator.NameVolumeRatio,
		indicator.NamePricePosition,
	) {
		return false
	}

	p := v.params
	pp := at(snap, indicator.NamePricePosition)
	bb := at(snap, indicator.NameBBPosition)

	return pp >= p.MinPricePosition && pp <= p.MaxPricePosition &&
		at(snap, indicator.NameRSI) <= p.MaxRSI &&
		bb >= p.MinBBPosition && bb <= p.MaxBBPosition &&
		at(snap, indicator.NamePrice) > at(snap, indicator.MAName(60)) &&
		at(snap, indicator.NameVolatility) <= p.MaxVolatility &&
		at(snap, indicator.NameVolumeRatio) > p.MinVolumeRatio
}

// Score implements Strategy. Deeper discounts to the recent range score
// higher; stability and headroom above the 60-day average add the rest.
func (v *Value) Score(snap *indicator.Snapshot) float64 {
	score := (1-at(snap, indicator.NamePricePosition))*30 +
		(1-at(snap, indicator.NameBBPosition))*20

	if headroom := 70 - at(snap, indicator.NameRSI); headroom > 0 {
		score += headroom * 0.5
	}

	score += (1 - at(snap, indicator.NameVolatility)) * 10

	if ma60 := at(snap, indicator.MAName(60)); ma60 > 0 {
		score += (at(snap, indicator.NamePrice)/ma60 - 1) * 15
	}

	score += at(snap, indicator.NameVolumeRatio) * 10
	return score
}
