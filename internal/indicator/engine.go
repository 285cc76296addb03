// Package indicator derives named technical signals from a daily price
// history prefix. The engine is pure: the same bar sequence always yields
// the same snapshot, and no bar after the last one supplied can influence
// any value. Callers enforce causality by truncating the history to the
// target date before calling Compute.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"equity-backtest-lab/internal/domain"
)

// ErrInsufficientHistory is returned when the supplied history is shorter
// than the configured minimum lookback. Indicators are undefined in that
// case, not zero.
var ErrInsufficientHistory = errors.New("insufficient price history for indicators")

// Snapshot indicator names. Moving averages use MAName(period).
const (
	NamePrice         = "price"
	NameHigh52W       = "high_52w"
	NameLow52W        = "low_52w"
	NameRSI           = "rsi"
	NameROC10         = "roc_10"
	NameMACD          = "macd"
	NameMACDSignal    = "macd_signal"
	NameMACDHist      = "macd_hist"
	NameBBUpper       = "bb_upper"
	NameBBMiddle      = "bb_middle"
	NameBBLower       = "bb_lower"
	NameBBPosition    = "bb_position"
	NameVolatility    = "volatility"
	NameATR           = "atr"
	NamePricePosition = "price_position"
	NameVolumeRatio   = "volume_ratio"
	NameVolumeMA      = "volume_ma"
	NameOBV           = "obv"
	NameVPT           = "vpt"
)

// tradingDaysPerYear is the annualization factor for daily return
// volatility.
const tradingDaysPerYear = 252

// yearWindow is the rolling window for 52-week high/low.
const yearWindow = 252

// MAName returns the snapshot key for a simple moving average period,
// e.g. MAName(20) == "ma20".
func MAName(period int) string {
	return fmt.Sprintf("ma%d", period)
}

// MomentumName returns the snapshot key for a momentum horizon,
// e.g. MomentumName(5) == "momentum_5d".
func MomentumName(period int) string {
	return fmt.Sprintf("momentum_%dd", period)
}

// Snapshot is an immutable set of indicator values computed as of one
// date. Values that are mathematically undefined for the given history
// (too short a window, zero-width band, zero range) are simply absent:
// Get reports presence explicitly and there are never NaNs inside.
type Snapshot struct {
	values map[string]float64
}

// NewSnapshot builds a snapshot directly from a value map. Intended for
// strategy tests and replayed snapshots; NaN and infinite values are
// dropped to preserve the no-NaN guarantee.
func NewSnapshot(values map[string]float64) *Snapshot {
	s := &Snapshot{values: make(map[string]float64, len(values))}
	for k, v := range values {
		s.set(k, v)
	}
	return s
}

// Get returns the named indicator value and whether it is defined.
func (s *Snapshot) Get(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Has reports whether every named indicator is defined.
func (s *Snapshot) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := s.values[n]; !ok {
			return false
		}
	}
	return true
}

// Values returns a copy of all defined indicator values.
func (s *Snapshot) Values() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Snapshot) set(name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	s.values[name] = v
}

// Engine computes indicator snapshots from bar histories.
type Engine struct {
	cfg domain.IndicatorConfig
}

// NewEngine creates an indicator engine with the given parameters.
func NewEngine(cfg domain.IndicatorConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Compute derives the full indicator snapshot from a bar history prefix.
// bars must be ordered by date ascending and already truncated to the
// target date. Returns ErrInsufficientHistory when fewer than the
// configured lookback bars are available.
func (e *Engine) Compute(bars []domain.PriceBar) (*Snapshot, error) {
	if len(bars) < e.cfg.LookbackDays {
		return nil, ErrInsufficientHistory
	}

	n := len(bars)
	closes := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		high[i] = b.High
		low[i] = b.Low
		volume[i] = b.Volume
	}

	s := &Snapshot{values: make(map[string]float64, 32)}

	s.set(NamePrice, closes[n-1])
	if v, ok := rollingMax(high, yearWindow); ok {
		s.set(NameHigh52W, v)
	}
	if v, ok := rollingMin(low, yearWindow); ok {
		s.set(NameLow52W, v)
	}

	e.computeMovingAverages(s, closes)
	e.computeMomentum(s, closes)
	e.computeTrend(s, closes)
	e.computeVolatility(s, closes, high, low)
	e.computeVolume(s, volume, closes)

	return s, nil
}

// computeMovingAverages fills simple moving averages for each configured
// period.
func (e *Engine) computeMovingAverages(s *Snapshot, closes []float64) {
	for _, p := range e.cfg.MAPeriods {
		if v, ok := rollingMean(closes, p); ok {
			s.set(MAName(p), v)
		}
	}
}

// computeMomentum fills RSI, multi-horizon momentum and rate of change.
func (e *Engine) computeMomentum(s *Snapshot, closes []float64) {
	if v, ok := e.rsi(closes); ok {
		s.set(NameRSI, v)
	}

	n := len(closes)
	for _, p := range e.cfg.MomentumPeriods {
		if n > p && closes[n-1-p] != 0 {
			s.set(MomentumName(p), closes[n-1]/closes[n-1-p]-1)
		}
	}

	if n > 10 && closes[n-11] != 0 {
		s.set(NameROC10, (closes[n-1]-closes[n-11])/closes[n-11]*100)
	}
}

// rsi computes the relative strength index over the configured period:
// average gain / average loss of period-over-period deltas mapped to
// 0-100. A zero average loss is defined as maximal RSI (100) rather than
// propagating a division by zero.
func (e *Engine) rsi(closes []float64) (float64, bool) {
	period := e.cfg.RSIPeriod
	if len(closes) < period+1 {
		return 0, false
	}

	gains := 0.0
	losses := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// computeTrend fills MACD and Bollinger band values.
func (e *Engine) computeTrend(s *Snapshot, closes []float64) {
	fast := emaSeries(closes, e.cfg.MACDFast)
	slow := emaSeries(closes, e.cfg.MACDSlow)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal := emaSeries(macd, e.cfg.MACDSignal)

	last := len(closes) - 1
	s.set(NameMACD, macd[last])
	s.set(NameMACDSignal, signal[last])
	s.set(NameMACDHist, macd[last]-signal[last])

	mid, okMid := rollingMean(closes, e.cfg.BBPeriod)
	sd, okSd := rollingStd(closes, e.cfg.BBPeriod)
	if !okMid || !okSd {
		return
	}
	upper := mid + e.cfg.BBStdDev*sd
	lower := mid - e.cfg.BBStdDev*sd
	s.set(NameBBUpper, upper)
	s.set(NameBBMiddle, mid)
	s.set(NameBBLower, lower)
	// A zero-width band leaves the band position undefined.
	if upper != lower {
		s.set(NameBBPosition, (closes[last]-lower)/(upper-lower))
	}
}

// computeVolatility fills realized volatility, ATR and the price position
// within the trailing high/low range.
func (e *Engine) computeVolatility(s *Snapshot, closes, high, low []float64) {
	returns := periodReturns(closes)
	if sd, ok := rollingStd(returns, e.cfg.VolatilityPeriod); ok {
		s.set(NameVolatility, sd*math.Sqrt(tradingDaysPerYear))
	}

	if atr, ok := e.atr(closes, high, low); ok {
		s.set(NameATR, atr)
	}

	lo, okLo := rollingMin(low, e.cfg.PricePositionPeriod)
	hi, okHi := rollingMax(high, e.cfg.PricePositionPeriod)
	if okLo && okHi && hi > lo {
		s.set(NamePricePosition, (closes[len(closes)-1]-lo)/(hi-lo))
	}
}

// atr computes the average true range: the rolling mean of
// max(high-low, |high-prevClose|, |low-prevClose|).
func (e *Engine) atr(closes, high, low []float64) (float64, bool) {
	n := len(closes)
	if n < 2 {
		return 0, false
	}
	tr := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		r := high[i] - low[i]
		if v := math.Abs(high[i] - closes[i-1]); v > r {
			r = v
		}
		if v := math.Abs(low[i] - closes[i-1]); v > r {
			r = v
		}
		tr = append(tr, r)
	}
	return rollingMean(tr, e.cfg.ATRPeriod)
}

// computeVolume fills volume ratio, on-balance volume and the
// volume-price trend. OBV and VPT are cumulative over the whole supplied
// history, not windowed.
func (e *Engine) computeVolume(s *Snapshot, volume, closes []float64) {
	n := len(closes)

	if vma, ok := rollingMean(volume, e.cfg.VolumeMAPeriod); ok {
		s.set(NameVolumeMA, vma)
		if vma > 0 {
			s.set(NameVolumeRatio, volume[n-1]/vma)
		}
	}

	obv := 0.0
	vpt := 0.0
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		switch {
		case delta > 0:
			obv += volume[i]
		case delta < 0:
			obv -= volume[i]
		}
		if closes[i-1] != 0 {
			vpt += volume[i] * (delta / closes[i-1])
		}
	}
	s.set(NameOBV, obv)
	s.set(NameVPT, vpt)
}

// periodReturns returns the day-over-day relative changes of closes.
func periodReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}
