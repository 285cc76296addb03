package strategy

import (
	"equity-backtest-lab/internal/indicator"
)

// Factor is one weighted component of a composite score. Score maps a
// snapshot to the 0-100 range; the weight sets its share of the
// composite.
type Factor struct {
	Name   string
	Weight float64
	Score  func(snap *indicator.Snapshot) float64
}

// CompositeScore returns the weight-normalized sum of factor scores. A
// zero total weight yields 0 rather than a division by zero.
func CompositeScore(factors []Factor, snap *indicator.Snapshot) float64 {
	total := 0.0
	weight := 0.0
	for _, f := range factors {
		total += f.Weight * f.Score(snap)
		weight += f.Weight
	}
	if weight == 0 {
		return 0
	}
	return total / weight
}

// MultiFactor is a user-assembled strategy: an arbitrary qualify gate
// plus a weighted factor composite for ranking. The built-in growth
// strategy is one fixed instance of this shape.
type MultiFactor struct {
	name        string
	description string
	qualify     func(snap *indicator.Snapshot) bool
	factors     []Factor
}

var _ Strategy = (*MultiFactor)(nil)

// NewMultiFactor creates a composite strategy. A nil qualify gate admits
// every instrument with a snapshot.
func NewMultiFactor(name, description string, qualify func(*indicator.Snapshot) bool, factors []Factor) *MultiFactor {
	return &MultiFactor{
		name:        name,
		description: description,
		qualify:     qualify,
		factors:     factors,
	}
}

// Name implements Strategy.
func (m *MultiFactor) Name() string { return m.name }

// Describe implements Strategy.
func (m *MultiFactor) Describe() string { return m.description }

// Qualify implements Strategy.
func (m *MultiFactor) Qualify(snap *indicator.Snapshot) bool {
	if m.qualify == nil {
		return true
	}
	return m.qualify(snap)
}

// Score implements Strategy.
func (m *MultiFactor) Score(snap *indicator.Snapshot) float64 {
	return CompositeScore(m.factors, snap)
}

// clamp100 bounds a factor score to the 0-100 range.
func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
