package domain

import (
	"errors"
	"strings"
)

// Frequency is the rebalance cadence. Rebalance dates are anchored to
// period starts (first of month / quarter / year).
type Frequency string

// Frequency constants.
const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ErrUnknownFrequency is returned for an unrecognized frequency name.
var ErrUnknownFrequency = errors.New("unknown rebalance frequency")

// ParseFrequency accepts long names and the single-letter shorthands
// M/Q/Y used by the configuration file.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "monthly":
		return FrequencyMonthly, nil
	case "q", "quarterly":
		return FrequencyQuarterly, nil
	case "y", "yearly":
		return FrequencyYearly, nil
	default:
		return "", ErrUnknownFrequency
	}
}

// PeriodsPerYear returns the number of rebalance periods per year for
// annualization of period statistics.
func (f Frequency) PeriodsPerYear() float64 {
	switch f {
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	case FrequencyYearly:
		return 1
	default:
		return 0
	}
}
