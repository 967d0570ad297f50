package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a client account with its credit ledger.
type Customer struct {
	ID               int64           `json:"id" db:"id"`
	Code             string          `json:"code" db:"code"`
	Name             string          `json:"name" db:"name"`
	CreditLimit      decimal.Decimal `json:"credit_limit" db:"credit_limit"`
	CreditUsed       decimal.Decimal `json:"credit_used" db:"credit_used"`
	PaymentTermsDays int             `json:"payment_terms_days" db:"payment_terms_days"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// AvailableCredit returns the unused part of the ceiling, never negative.
func (c Customer) AvailableCredit() decimal.Decimal {
	avail := c.CreditLimit.Sub(c.CreditUsed)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}
