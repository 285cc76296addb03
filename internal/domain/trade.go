package domain

import "time"

// Action represents a trade direction.
type Action string

// Action constants.
const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Trade is one executed trade. The trade log is append-only and owned by
// the ledger; one authoritative history exists per simulation run.
type Trade struct {
	Date   time.Time `json:"date"`
	Action Action    `json:"action"`
	Code   string    `json:"code"`
	Shares int64     `json:"shares"` // positive multiple of the board lot size
	Price  float64   `json:"price"`  // execution price per share
	Cost   float64   `json:"cost"`   // commission plus stamp tax, never the traded amount
}

// Amount returns the traded notional (shares × price), excluding costs.
func (t Trade) Amount() float64 {
	return float64(t.Shares) * t.Price
}
