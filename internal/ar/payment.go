package ar

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/shared"
)

// ErrInvoicePaid occurs when a payment targets a PAID invoice.
var ErrInvoicePaid = fmt.Errorf("%w: invoice already paid", shared.ErrSequenceViolation)

// Settlement is the effect of one payment on an invoice and its client.
type Settlement struct {
	Invoice     Invoice
	CreditDelta decimal.Decimal
}

// Settle applies amount to a copy of inv. While the invoice stays partially
// paid the client's accrual for it equals the outstanding balance; once paid
// in full the accrual is reversed.
func Settle(inv Invoice, amount decimal.Decimal) (Settlement, error) {
	if !amount.IsPositive() {
		return Settlement{}, shared.Violation(shared.ErrInvalidInput, "amount", amount, "> 0")
	}
	if inv.Status == InvoiceStatusPaid {
		return Settlement{}, fmt.Errorf("invoice %s: %w", inv.Number, ErrInvoicePaid)
	}

	next := inv
	next.PaidAmount = inv.PaidAmount.Add(amount)
	if next.PaidAmount.LessThan(inv.Total) {
		next.Status = InvoiceStatusPartial
		next.CreditAccrued = inv.Total.Sub(next.PaidAmount)
	} else {
		next.Status = InvoiceStatusPaid
		next.CreditAccrued = decimal.Zero
		next.DaysOverdue = 0
	}
	return Settlement{Invoice: next, CreditDelta: next.CreditAccrued.Sub(inv.CreditAccrued)}, nil
}
