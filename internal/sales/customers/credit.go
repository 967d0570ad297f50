package customers

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/shared"
)

// CreditDecision is the outcome of the credit gate.
type CreditDecision struct {
	CustomerID      int64           `json:"customer_id"`
	Allowed         bool            `json:"allowed"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	CreditUsed      decimal.Decimal `json:"credit_used"`
	ProjectedAmount decimal.Decimal `json:"projected_amount"`
	Available       decimal.Decimal `json:"available"`
	Overage         decimal.Decimal `json:"overage"`
}

// CreditGate denies when creditUsed + projected would exceed the ceiling.
func CreditGate(c Customer, projected decimal.Decimal) CreditDecision {
	exposure := c.CreditUsed.Add(projected)
	d := CreditDecision{
		CustomerID:      c.ID,
		Allowed:         exposure.LessThanOrEqual(c.CreditLimit),
		CreditLimit:     c.CreditLimit,
		CreditUsed:      c.CreditUsed,
		ProjectedAmount: projected,
		Available:       c.AvailableCredit(),
		Overage:         decimal.Zero,
	}
	if !d.Allowed {
		d.Overage = exposure.Sub(c.CreditLimit)
	}
	return d
}

// Err converts a denial into ErrCreditLimitExceeded carrying the overage.
func (d CreditDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return shared.Violation(shared.ErrCreditLimitExceeded, "projected_amount", d.ProjectedAmount,
		fmt.Sprintf("available %s, overage %s", d.Available.StringFixed(2), d.Overage.StringFixed(2)))
}
