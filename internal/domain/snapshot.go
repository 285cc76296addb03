package domain

import "time"

// PortfolioSnapshot captures portfolio state after one rebalance event.
// Snapshots are appended once per rebalance date, ordered by date.
type PortfolioSnapshot struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"` // cash + market value of all positions
	Cash      float64   `json:"cash"`
	Positions int       `json:"positions"` // number of distinct held instruments
}

// RunResult holds the complete output of one simulation run.
type RunResult struct {
	RunID          string    `json:"run_id"`
	StrategyName   string    `json:"strategy_name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Frequency      Frequency `json:"frequency"`
	InitialCapital float64   `json:"initial_capital"`

	Snapshots  []PortfolioSnapshot `json:"snapshots"`
	Trades     []Trade             `json:"trades"`
	FinalValue float64             `json:"final_value"`
}
