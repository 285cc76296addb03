package domain

// Candidate is one instrument selected by a strategy for a rebalance date.
// Candidates are ephemeral: produced once per rebalance date and consumed
// immediately to build the target allocation.
type Candidate struct {
	Code       string
	Name       string
	Score      float64
	Price      float64            // close used for scoring (latest close ≤ rebalance date)
	Indicators map[string]float64 // supporting indicator values at selection time
}
