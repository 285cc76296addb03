package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest-lab/internal/indicator"
)

// momentumFixture returns indicator values that pass every momentum
// gate, for tests to break one condition at a time.
func momentumFixture() map[string]float64 {
	return map[string]float64{
		indicator.NamePrice:         110,
		indicator.MAName(5):         108,
		indicator.MAName(10):        106,
		indicator.MAName(20):        104,
		indicator.MAName(60):        100,
		indicator.NameRSI:           60,
		indicator.MomentumName(5):   0.05,
		indicator.MomentumName(10):  0.08,
		indicator.MomentumName(20):  0.10,
		indicator.NameMACD:          1.2,
		indicator.NameMACDSignal:    1.0,
		indicator.NameMACDHist:      0.2,
		indicator.NameBBPosition:    0.5,
		indicator.NameVolatility:    0.3,
		indicator.NameVolumeRatio:   1.5,
		indicator.NamePricePosition: 0.7,
	}
}

func TestMomentum_QualifyAcceptsAlignedUptrend(t *testing.T) {
	s := NewMomentum(DefaultMomentumParams())
	assert.True(t, s.Qualify(indicator.NewSnapshot(momentumFixture())))
}

func TestMomentum_QualifyRejections(t *testing.T) {
	s := NewMomentum(DefaultMomentumParams())

	cases := []struct {
		name   string
		mutate func(map[string]float64)
	}{
		{"price below ma20", func(m map[string]float64) { m[indicator.NamePrice] = 103 }},
		{"broken ma alignment", func(m map[string]float64) { m[indicator.MAName(10)] = 109 }},
		{"overbought rsi", func(m map[string]float64) { m[indicator.NameRSI] = 76 }},
		{"washed out rsi", func(m map[string]float64) { m[indicator.NameRSI] = 19 }},
		{"deep short-term pullback", func(m map[string]float64) { m[indicator.MomentumName(5)] = -0.06 }},
		{"macd below signal", func(m map[string]float64) { m[indicator.NameMACD] = 0.9 }},
		{"negative macd histogram", func(m map[string]float64) { m[indicator.NameMACDHist] = -0.01 }},
		{"band position too high", func(m map[string]float64) { m[indicator.NameBBPosition] = 0.85 }},
		{"too volatile", func(m map[string]float64) { m[indicator.NameVolatility] = 0.5 }},
		{"thin volume", func(m map[string]float64) { m[indicator.NameVolumeRatio] = 0.4 }},
		{"bottom of range", func(m map[string]float64) { m[indicator.NamePricePosition] = 0.2 }},
		{"missing indicator disqualifies", func(m map[string]float64) { delete(m, indicator.NameBBPosition) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := momentumFixture()
			tc.mutate(values)
			assert.False(t, s.Qualify(indicator.NewSnapshot(values)))
		})
	}
}

func TestMomentum_ScoreComposition(t *testing.T) {
	s := NewMomentum(DefaultMomentumParams())
	snap := indicator.NewSnapshot(momentumFixture())

	want := 0.05*20 + 0.08*15 + 0.10*5 +
		(110.0/104.0-1)*25 +
		(80-math.Abs(60-50))*0.3 +
		0.2*100 +
		0.7*10

	assert.InDelta(t, want, s.Score(snap), 1e-12)
}

func valueFixture() map[string]float64 {
	return map[string]float64{
		indicator.NamePrice:         105,
		indicator.MAName(60):        100,
		indicator.NameRSI:           55,
		indicator.NameBBPosition:    0.3,
		indicator.NameVolatility:    0.25,
		indicator.NameVolumeRatio:   0.8,
		indicator.NamePricePosition: 0.4,
	}
}

func TestValue_QualifyAcceptsPullbackInUptrend(t *testing.T) {
	s := NewValue(DefaultValueParams())
	assert.True(t, s.Qualify(indicator.NewSnapshot(valueFixture())))
}

func TestValue_QualifyRejections(t *testing.T) {
	s := NewValue(DefaultValueParams())

	cases := []struct {
		name   string
		mutate func(map[string]float64)
	}{
		{"too high in range", func(m map[string]float64) { m[indicator.NamePricePosition] = 0.65 }},
		{"overbought rsi", func(m map[string]float64) { m[indicator.NameRSI] = 71 }},
		{"band position too high", func(m map[string]float64) { m[indicator.NameBBPosition] = 0.55 }},
		{"below long-term average", func(m map[string]float64) { m[indicator.NamePrice] = 99 }},
		{"too volatile", func(m map[string]float64) { m[indicator.NameVolatility] = 0.45 }},
		{"no volume", func(m map[string]float64) { m[indicator.NameVolumeRatio] = 0.3 }},
		{"missing indicator disqualifies", func(m map[string]float64) { delete(m, indicator.MAName(60)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := valueFixture()
			tc.mutate(values)
			assert.False(t, s.Qualify(indicator.NewSnapshot(values)))
		})
	}
}

func TestValue_ScoreComposition(t *testing.T) {
	s := NewValue(DefaultValueParams())
	snap := indicator.NewSnapshot(valueFixture())

	want := (1-0.4)*30 + (1-0.3)*20 + (70-55)*0.5 + (1-0.25)*10 + (105.0/100.0-1)*15 + 0.8*10

	assert.InDelta(t, want, s.Score(snap), 1e-12)
}

func growthFixture() map[string]float64 {
	return map[string]float64{
		indicator.NamePrice:         110,
		indicator.MAName(20):        105,
		indicator.MAName(60):        100,
		indicator.NameRSI:           62,
		indicator.MomentumName(20):  0.08,
		indicator.MomentumName(60):  0.15,
		indicator.NameMACDHist:      0.3,
		indicator.NameVolatility:    0.4,
		indicator.NameVolumeRatio:   1.5,
		indicator.NamePricePosition: 0.6,
	}
}

func TestGrowth_QualifyAcceptsConfirmedBreakout(t *testing.T) {
	s := NewGrowth(DefaultGrowthParams())
	assert.True(t, s.Qualify(indicator.NewSnapshot(growthFixture())))
}

func TestGrowth_QualifyRejections(t *testing.T) {
	s := NewGrowth(DefaultGrowthParams())

	cases := []struct {
		name   string
		mutate func(map[string]float64)
	}{
		{"weak 20-day momentum", func(m map[string]float64) { m[indicator.MomentumName(20)] = 0.04 }},
		{"weak 60-day momentum", func(m map[string]float64) { m[indicator.MomentumName(60)] = 0.09 }},
		{"overheated rsi", func(m map[string]float64) { m[indicator.NameRSI] = 81 }},
		{"no volume confirmation", func(m map[string]float64) { m[indicator.NameVolumeRatio] = 1.1 }},
		{"low in range", func(m map[string]float64) { m[indicator.NamePricePosition] = 0.35 }},
		{"broken trend chain", func(m map[string]float64) { m[indicator.MAName(20)] = 99 }},
		{"negative macd histogram", func(m map[string]float64) { m[indicator.NameMACDHist] = -0.1 }},
		{"too volatile", func(m map[string]float64) { m[indicator.NameVolatility] = 0.65 }},
		{"missing indicator disqualifies", func(m map[string]float64) { delete(m, indicator.MomentumName(60)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := growthFixture()
			tc.mutate(values)
			assert.False(t, s.Qualify(indicator.NewSnapshot(values)))
		})
	}
}

func TestGrowth_ScoreIsWeightedFactorComposite(t *testing.T) {
	s := NewGrowth(DefaultGrowthParams())
	snap := indicator.NewSnapshot(growthFixture())

	// Factor scores: momentum_20d 0.08*200=16, momentum_60d 0.15*100=15,
	// rsi (62-50)/30*100=40, volume_ratio (1.5-1)*50=25,
	// price_position 0.6*100=60.
	want := 16*0.30 + 15*0.25 + 40*0.20 + 25*0.15 + 60*0.10

	assert.InDelta(t, want, s.Score(snap), 1e-12)
}

func TestGrowth_QualifyingRSIBelowRampScoresZero(t *testing.T) {
	s := NewGrowth(DefaultGrowthParams())

	values := growthFixture()
	values[indicator.NameRSI] = 47
	snap := indicator.NewSnapshot(values)
	require.True(t, s.Qualify(snap))

	// The rsi factor contributes nothing until the reading reaches 50.
	want := 16*0.30 + 15*0.25 + 0*0.20 + 25*0.15 + 60*0.10
	assert.InDelta(t, want, s.Score(snap), 1e-12)
}

func TestGrowth_FactorScoresAreClamped(t *testing.T) {
	s := NewGrowth(DefaultGrowthParams())

	values := growthFixture()
	values[indicator.MomentumName(20)] = 0.9 // 180 before clamping
	values[indicator.MomentumName(60)] = 2.0 // 200 before clamping
	snap := indicator.NewSnapshot(values)

	want := 100*0.30 + 100*0.25 + 40*0.20 + 25*0.15 + 60*0.10
	assert.InDelta(t, want, s.Score(snap), 1e-12)
}

func TestRSIFactorScore(t *testing.T) {
	assert.InDelta(t, 0.0, rsiFactorScore(50), 1e-12)
	assert.InDelta(t, 100.0, rsiFactorScore(80), 1e-12)
	assert.InDelta(t, 50.0, rsiFactorScore(65), 1e-12)
	assert.InDelta(t, 75.0, rsiFactorScore(85), 1e-12, "overheated reading is penalized")
	assert.Zero(t, rsiFactorScore(49.9), "below the ramp earns nothing")
	assert.Zero(t, rsiFactorScore(47))
	assert.Zero(t, rsiFactorScore(40))
	assert.Zero(t, rsiFactorScore(120))
}

func TestCompositeScore_ZeroWeightIsZero(t *testing.T) {
	snap := indicator.NewSnapshot(map[string]float64{indicator.NamePrice: 10})

	got := CompositeScore(nil, snap)
	assert.Zero(t, got)

	got = CompositeScore([]Factor{
		{Name: "x", Weight: 0, Score: func(*indicator.Snapshot) float64 { return 100 }},
	}, snap)
	assert.Zero(t, got)
}

func TestMultiFactor_NilQualifyAdmitsAll(t *testing.T) {
	s := NewMultiFactor("custom", "test composite", nil, []Factor{
		{Name: "constant", Weight: 1, Score: func(*indicator.Snapshot) float64 { return 42 }},
	})

	snap := indicator.NewSnapshot(map[string]float64{})
	assert.True(t, s.Qualify(snap))
	assert.InDelta(t, 42.0, s.Score(snap), 1e-12)
	assert.Equal(t, "custom", s.Name())
}

func TestFromConfig(t *testing.T) {
	for _, typ := range []Type{TypeMomentum, TypeValue, TypeGrowth} {
		s, err := FromConfig(Config{Type: typ})
		require.NoError(t, err)
		assert.Equal(t, string(typ), s.Name())
	}

	_, err := FromConfig(Config{Type: "arbitrage"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestFromConfig_ParamOverrides(t *testing.T) {
	params := DefaultMomentumParams()
	params.MaxRSI = 90

	s, err := FromConfig(Config{Type: TypeMomentum, Momentum: &params})
	require.NoError(t, err)

	values := momentumFixture()
	values[indicator.NameRSI] = 85
	assert.True(t, s.Qualify(indicator.NewSnapshot(values)))
}

func TestParseType(t *testing.T) {
	typ, err := ParseType(" Momentum ")
	require.NoError(t, err)
	assert.Equal(t, TypeMomentum, typ)

	_, err = ParseType("pairs")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
