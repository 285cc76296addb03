package domain

import "time"

// PriceBar represents one trading day of OHLCV data for a single instrument.
// Bars for an instrument form an ordered sequence with strictly increasing
// dates and no duplicates.
type PriceBar struct {
	Code   string    // instrument code
	Date   time.Time // trading day (UTC midnight)
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Instrument describes one tradable instrument. Immutable once loaded.
type Instrument struct {
	Code      string  // unique key, e.g. "600519"
	Name      string  // display name
	MarketCap float64 // static attribute in 100M units, 0 if unknown
}

// Day truncates t to UTC midnight. All bar dates and rebalance dates are
// normalized through this before comparison.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BarsUpTo returns the prefix of bars dated at or before target.
// Bars must be ordered by date ascending. This is the only sanctioned way
// to truncate a history for as-of computations.
func BarsUpTo(bars []PriceBar, target time.Time) []PriceBar {
	target = Day(target)
	// Walk back from the end: rebalance dates are near the tail in practice.
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Date.After(target) {
			return bars[:i+1]
		}
	}
	return nil
}

// LatestCloseAt returns the most recent close at or before target, or
// false if no bar exists at or before target.
func LatestCloseAt(bars []PriceBar, target time.Time) (float64, bool) {
	prefix := BarsUpTo(bars, target)
	if len(prefix) == 0 {
		return 0, false
	}
	return prefix[len(prefix)-1].Close, true
}
