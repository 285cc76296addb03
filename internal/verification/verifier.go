// Package verification re-executes persisted runs against the current
// market data and checks that the stored results reproduce. A
// divergence means the data, the configuration or the engine changed
// since the run was recorded.
package verification

import (
	"fmt"
	"math"
	"time"

	"equity-backtest-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons. Valuations
// accumulate through decimal arithmetic, so replays reproduce well
// below this bound.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, indexed for repeated sections
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// Result contains the outcome of verifying a single run.
type Result struct {
	RunID       string
	Match       bool
	Divergences []FieldDivergence
}

// Report contains results for batch verification.
type Report struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []Result
}

// CompareRuns compares a stored run against its replay and returns the
// divergences. Float fields use FloatTolerance.
func CompareRuns(stored, replayed *domain.RunResult) []FieldDivergence {
	var divergences []FieldDivergence

	divergences = appendStringDiff(divergences, "RunID", stored.RunID, replayed.RunID)
	divergences = appendStringDiff(divergences, "StrategyName", stored.StrategyName, replayed.StrategyName)
	divergences = appendFloatDiff(divergences, "FinalValue", stored.FinalValue, replayed.FinalValue)

	if len(stored.Snapshots) != len(replayed.Snapshots) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Snapshots.len",
			Expected: len(stored.Snapshots),
			Actual:   len(replayed.Snapshots),
		})
	} else {
		for i := range stored.Snapshots {
			divergences = compareSnapshot(divergences, i, stored.Snapshots[i], replayed.Snapshots[i])
		}
	}

	if len(stored.Trades) != len(replayed.Trades) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Trades.len",
			Expected: len(stored.Trades),
			Actual:   len(replayed.Trades),
		})
	} else {
		for i := range stored.Trades {
			divergences = compareTrade(divergences, i, stored.Trades[i], replayed.Trades[i])
		}
	}

	return divergences
}

func compareSnapshot(divs []FieldDivergence, i int, stored, replayed domain.PortfolioSnapshot) []FieldDivergence {
	prefix := indexed("Snapshots", i)
	divs = appendDateDiff(divs, prefix+".Date", stored.Date, replayed.Date)
	divs = appendFloatDiff(divs, prefix+".Value", stored.Value, replayed.Value)
	divs = appendFloatDiff(divs, prefix+".Cash", stored.Cash, replayed.Cash)
	if stored.Positions != replayed.Positions {
		divs = append(divs, FieldDivergence{
			Field:    prefix + ".Positions",
			Expected: stored.Positions,
			Actual:   replayed.Positions,
		})
	}
	return divs
}

func compareTrade(divs []FieldDivergence, i int, stored, replayed domain.Trade) []FieldDivergence {
	prefix := indexed("Trades", i)
	divs = appendDateDiff(divs, prefix+".Date", stored.Date, replayed.Date)
	divs = appendStringDiff(divs, prefix+".Action", string(stored.Action), string(replayed.Action))
	divs = appendStringDiff(divs, prefix+".Code", stored.Code, replayed.Code)
	if stored.Shares != replayed.Shares {
		divs = append(divs, FieldDivergence{
			Field:    prefix + ".Shares",
			Expected: stored.Shares,
			Actual:   replayed.Shares,
		})
	}
	divs = appendFloatDiff(divs, prefix+".Price", stored.Price, replayed.Price)
	divs = appendFloatDiff(divs, prefix+".Cost", stored.Cost, replayed.Cost)
	return divs
}

func appendStringDiff(divs []FieldDivergence, field, expected, actual string) []FieldDivergence {
	if expected != actual {
		divs = append(divs, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
	return divs
}

func appendFloatDiff(divs []FieldDivergence, field string, expected, actual float64) []FieldDivergence {
	if math.Abs(expected-actual) > FloatTolerance {
		divs = append(divs, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
	return divs
}

func appendDateDiff(divs []FieldDivergence, field string, expected, actual time.Time) []FieldDivergence {
	if !expected.Equal(actual) {
		divs = append(divs, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
	return divs
}

func indexed(section string, i int) string {
	return fmt.Sprintf("%s[%d]", section, i)
}
