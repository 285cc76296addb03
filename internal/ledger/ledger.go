// Package ledger owns cash and position bookkeeping for a simulation run.
// It is the only component allowed to mutate portfolio state, and it
// enforces the hard invariants: cash never goes negative, positions never
// go below zero, and every trade is a positive multiple of the lot size.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"equity-backtest-lab/internal/domain"
)

// PriceLookup resolves the most recent available close for an instrument
// at or before the given date. The second return reports availability.
type PriceLookup func(code string, date time.Time) (float64, bool)

// Ledger tracks cash, positions and the append-only trade log for one
// simulation run. It is not safe for concurrent use: the scheduler owns
// it for the run's duration and mutates it single-threaded.
type Ledger struct {
	cash      decimal.Decimal
	positions map[string]int64
	trades    []domain.Trade

	lotSize int64
	costs   costModel
	log     *logrus.Logger
}

// New creates a ledger with the given starting cash. logger may be nil,
// in which case the standard logger is used for data-gap diagnostics.
func New(initialCapital float64, lotSize int64, costs domain.CostConfig, logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Ledger{
		cash:      decimal.NewFromFloat(initialCapital),
		positions: make(map[string]int64),
		trades:    nil,
		lotSize:   lotSize,
		costs:     newCostModel(costs),
		log:       logger,
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash.InexactFloat64()
}

// Position returns the held share count for an instrument (0 if none).
func (l *Ledger) Position(code string) int64 {
	return l.positions[code]
}

// Positions returns a copy of all non-zero positions.
func (l *Ledger) Positions() map[string]int64 {
	out := make(map[string]int64, len(l.positions))
	for code, shares := range l.positions {
		out[code] = shares
	}
	return out
}

// PositionCount returns the number of distinct held instruments.
func (l *Ledger) PositionCount() int {
	return len(l.positions)
}

// Trades returns a copy of the trade log in execution order.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Execute attempts a buy or sell. On failure (insufficient cash or
// shares, or an invalid share count) it returns false and performs no
// mutation; a failed trade is a skipped trade, never a fatal error.
func (l *Ledger) Execute(action domain.Action, code string, price float64, shares int64, date time.Time) bool {
	if shares <= 0 || shares%l.lotSize != 0 || price <= 0 {
		return false
	}

	amount := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(shares))

	switch action {
	case domain.ActionBuy:
		cost := l.costs.tradingCost(amount, false)
		total := amount.Add(cost)
		if total.GreaterThan(l.cash) {
			return false
		}
		l.cash = l.cash.Sub(total)
		l.positions[code] += shares
		l.appendTrade(date, domain.ActionBuy, code, shares, price, cost)
		return true

	case domain.ActionSell:
		if l.positions[code] < shares {
			return false
		}
		cost := l.costs.tradingCost(amount, true)
		l.cash = l.cash.Add(amount.Sub(cost))
		l.positions[code] -= shares
		if l.positions[code] == 0 {
			delete(l.positions, code)
		}
		l.appendTrade(date, domain.ActionSell, code, shares, price, cost)
		return true

	default:
		return false
	}
}

// Valuation returns cash plus the market value of all held positions at
// the most recent available price at or before date. A position with no
// available price contributes nothing; that is a data gap worth logging,
// not a zero-value holding.
func (l *Ledger) Valuation(date time.Time, priceAt PriceLookup) float64 {
	total := l.cash
	for code, shares := range l.positions {
		price, ok := priceAt(code, date)
		if !ok {
			l.log.WithFields(logrus.Fields{
				"code": code,
				"date": date.Format("2006-01-02"),
			}).Warn("no price available for held position, valuing at 0")
			continue
		}
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(shares)))
	}
	return total.InexactFloat64()
}

func (l *Ledger) appendTrade(date time.Time, action domain.Action, code string, shares int64, price float64, cost decimal.Decimal) {
	l.trades = append(l.trades, domain.Trade{
		Date:   date,
		Action: action,
		Code:   code,
		Shares: shares,
		Price:  price,
		Cost:   cost.InexactFloat64(),
	})
}
