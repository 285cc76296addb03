// Package strategy decides which instruments a simulation holds. A
// strategy is a pure function of an indicator snapshot: Qualify gates
// entry and Score ranks the survivors. The selector fans both out over
// a universe and returns the top candidates for one rebalance date.
package strategy

import (
	"equity-backtest-lab/internal/indicator"
)

// Strategy evaluates one instrument from its indicator snapshot.
// Implementations must be stateless with respect to evaluation: the same
// snapshot always yields the same answer, and calls are safe to run
// concurrently.
type Strategy interface {
	// Name returns the short identifier used in run records and reports.
	Name() string

	// Describe returns a one-line human description of the entry rules.
	Describe() string

	// Qualify reports whether the instrument passes the entry gate. A
	// snapshot missing any indicator the strategy reads disqualifies the
	// instrument; absence is never treated as zero.
	Qualify(snap *indicator.Snapshot) bool

	// Score ranks a qualified instrument. Higher is better. Only called
	// on snapshots that passed Qualify.
	Score(snap *indicator.Snapshot) float64
}

// at reads an indicator value that Qualify has already checked for
// presence. Absent values read as 0, which is why Score must only run
// after Qualify.
func at(snap *indicator.Snapshot, name string) float64 {
	v, _ := snap.Get(name)
	return v
}
