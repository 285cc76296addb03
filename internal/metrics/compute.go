// Package metrics computes performance statistics from a finished run.
// Every function is pure: the same RunResult always produces the same
// report, and computing a report never mutates the run.
package metrics

import (
	"math"

	"equity-backtest-lab/internal/domain"
)

// Report is the full performance summary of one run. Ratio metrics are
// zero when the value history is too short to define them; that is a
// stated convention, not an error.
type Report struct {
	StrategyName string

	InitialValue float64
	FinalValue   float64

	TotalReturn      float64
	AnnualizedReturn float64

	// MaxDrawdown is the worst peak-to-trough decline, expressed as a
	// non-positive fraction.
	MaxDrawdown float64

	WinRate          float64
	SharpeRatio      float64
	InformationRatio float64

	// Volatility is the standard deviation of period returns annualized
	// by the rebalance frequency.
	Volatility float64

	MaxLosingStreak int
	TradeCount      int

	// Days spans the first to last portfolio snapshot.
	Days int

	// Score grades the run 0-100 across return, drawdown, Sharpe, win
	// rate and streak stability; Rating is its label.
	Score  int
	Rating string
}

// Compute derives the full report from a run. annualRiskFreeRate feeds
// the Sharpe ratio and is scaled down to the run's period count.
func Compute(run *domain.RunResult, annualRiskFreeRate float64) Report {
	r := Report{
		StrategyName: run.StrategyName,
		InitialValue: run.InitialCapital,
		TradeCount:   len(run.Trades),
	}

	snaps := run.Snapshots
	if len(snaps) == 0 || run.InitialCapital <= 0 {
		r.Score = score(r)
		r.Rating = Rating(r.Score)
		return r
	}

	r.FinalValue = snaps[len(snaps)-1].Value
	r.TotalReturn = (r.FinalValue - r.InitialValue) / r.InitialValue
	r.Days = int(snaps[len(snaps)-1].Date.Sub(snaps[0].Date).Hours() / 24)
	r.AnnualizedReturn = annualize(r.TotalReturn, r.Days)
	r.MaxDrawdown = maxDrawdown(snaps)

	returns := periodReturns(snaps)
	if len(returns) > 0 {
		r.WinRate = winRate(returns)
		r.MaxLosingStreak = maxLosingStreak(returns)
	}
	if len(returns) > 1 {
		n := float64(len(returns))
		r.Volatility = sampleStd(returns) * math.Sqrt(run.Frequency.PeriodsPerYear())
		r.SharpeRatio = sharpe(returns, annualRiskFreeRate/n)
		r.InformationRatio = meanOverStd(returns) * math.Sqrt(n)
	}

	r.Score = score(r)
	r.Rating = Rating(r.Score)
	return r
}

// annualize converts a total return over the given elapsed days to a
// yearly rate. Zero or negative elapsed time yields 0.
func annualize(totalReturn float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, 365/float64(days)) - 1
}

// maxDrawdown returns the most negative decline from a running peak of
// the snapshot values.
func maxDrawdown(snaps []domain.PortfolioSnapshot) float64 {
	worst := 0.0
	peak := math.Inf(-1)
	for _, s := range snaps {
		if s.Value > peak {
			peak = s.Value
		}
		if peak > 0 {
			if dd := (s.Value - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// periodReturns converts the snapshot value series to period-over-period
// relative changes.
func periodReturns(snaps []domain.PortfolioSnapshot) []float64 {
	if len(snaps) < 2 {
		return nil
	}
	out := make([]float64, 0, len(snaps)-1)
	for i := 1; i < len(snaps); i++ {
		prev := snaps[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, snaps[i].Value/prev-1)
	}
	return out
}

func winRate(returns []float64) float64 {
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

func maxLosingStreak(returns []float64) int {
	longest := 0
	current := 0
	for _, r := range returns {
		if r < 0 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// sharpe is the mean excess period return over its standard deviation,
// scaled by the square root of the period count. A zero standard
// deviation yields 0.
func sharpe(returns []float64, periodRiskFree float64) float64 {
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - periodRiskFree
	}
	return meanOverStd(excess) * math.Sqrt(float64(len(excess)))
}

func meanOverStd(xs []float64) float64 {
	sd := sampleStd(xs)
	if sd == 0 {
		return 0
	}
	return mean(xs) / sd
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 standard deviation.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// score grades a report 0-100: up to 30 points for annualized return,
// 25 for drawdown control, 20 for Sharpe, 15 for win rate and 10 for
// streak stability.
func score(r Report) int {
	s := 0

	switch ar := r.AnnualizedReturn; {
	case ar > 0.20:
		s += 30
	case ar > 0.15:
		s += 25
	case ar > 0.10:
		s += 20
	case ar > 0.05:
		s += 15
	case ar > 0:
		s += 10
	}

	switch dd := math.Abs(r.MaxDrawdown); {
	case dd < 0.05:
		s += 25
	case dd < 0.10:
		s += 20
	case dd < 0.15:
		s += 15
	case dd < 0.20:
		s += 10
	case dd < 0.30:
		s += 5
	}

	switch sr := r.SharpeRatio; {
	case sr > 2:
		s += 20
	case sr > 1.5:
		s += 15
	case sr > 1:
		s += 10
	case sr > 0.5:
		s += 5
	}

	switch wr := r.WinRate; {
	case wr > 0.60:
		s += 15
	case wr > 0.55:
		s += 12
	case wr > 0.50:
		s += 10
	case wr > 0.45:
		s += 7
	case wr > 0.40:
		s += 5
	}

	switch ls := r.MaxLosingStreak; {
	case ls <= 2:
		s += 10
	case ls <= 3:
		s += 8
	case ls <= 5:
		s += 5
	case ls <= 7:
		s += 3
	}

	return s
}

// Rating maps a 0-100 score to its label.
func Rating(score int) string {
	switch {
	case score >= 85:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 55:
		return "average"
	case score >= 40:
		return "fair"
	case score >= 25:
		return "poor"
	default:
		return "needs optimization"
	}
}
