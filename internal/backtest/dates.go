package backtest

import (
	"time"

	"equity-backtest-lab/internal/domain"
)

// RebalanceDates returns the period-start rebalance dates within
// [start, end] inclusive. Monthly anchors to the first of each month,
// quarterly to the first of January, April, July and October, yearly to
// the first of January. A start that is not itself a period start rolls
// forward to the next one, so a range too short to contain any anchor
// yields no dates.
func RebalanceDates(start, end time.Time, freq domain.Frequency) []time.Time {
	start = domain.Day(start)
	end = domain.Day(end)
	if end.Before(start) {
		return nil
	}

	var first time.Time
	var step func(time.Time) time.Time
	switch freq {
	case domain.FrequencyMonthly:
		first = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	case domain.FrequencyQuarterly:
		month := time.Month((int(start.Month())-1)/3*3 + 1)
		first = time.Date(start.Year(), month, 1, 0, 0, 0, 0, time.UTC)
		step = func(t time.Time) time.Time { return t.AddDate(0, 3, 0) }
	case domain.FrequencyYearly:
		first = time.Date(start.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		step = func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	default:
		return nil
	}
	if first.Before(start) {
		first = step(first)
	}

	var dates []time.Time
	for d := first; !d.After(end); d = step(d) {
		dates = append(dates, d)
	}
	return dates
}
