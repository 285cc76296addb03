package ledger

import (
	"github.com/shopspring/decimal"

	"equity-backtest-lab/internal/domain"
)

// costModel computes per-trade transaction costs from the configured
// rates. All arithmetic is decimal so repeated trades never accumulate
// binary rounding drift in the cash balance.
type costModel struct {
	commissionRate decimal.Decimal
	minCommission  decimal.Decimal
	stampTaxRate   decimal.Decimal
}

func newCostModel(cfg domain.CostConfig) costModel {
	return costModel{
		commissionRate: decimal.NewFromFloat(cfg.CommissionRate),
		minCommission:  decimal.NewFromFloat(cfg.MinCommission),
		stampTaxRate:   decimal.NewFromFloat(cfg.StampTaxRate),
	}
}

// tradingCost returns commission plus (for sells) stamp tax on the traded
// amount. Commission is rate-based with a flat floor; stamp tax applies
// to the sell side only.
func (m costModel) tradingCost(amount decimal.Decimal, sell bool) decimal.Decimal {
	commission := amount.Mul(m.commissionRate)
	if commission.LessThan(m.minCommission) {
		commission = m.minCommission
	}
	if !sell {
		return commission
	}
	return commission.Add(amount.Mul(m.stampTaxRate))
}
