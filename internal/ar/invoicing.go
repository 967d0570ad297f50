package ar

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/delivery"
	salesshared "github.com/concreta/concreta/internal/sales/shared"
	"github.com/concreta/concreta/internal/shared"
)

// ErrDeliveryNotValidated occurs when a delivery outside the cement tolerance is
// billed without AcceptFlagged.
var ErrDeliveryNotValidated = fmt.Errorf("%w: delivery failed technical validation", shared.ErrSequenceViolation)

// InvoiceTerms carries the pricing inputs that are not on the deliveries.
type InvoiceTerms struct {
	TaxRatePct    decimal.Decimal
	TermsDays     int
	IssuedAt      time.Time
	AcceptFlagged bool
}

// CommonCustomer returns the single client the deliveries belong to.
func CommonCustomer(deliveries []delivery.Delivery) (int64, error) {
	if len(deliveries) == 0 {
		return 0, fmt.Errorf("%w: at least one delivery required", shared.ErrInvalidInput)
	}
	customerID := deliveries[0].CustomerID
	for _, d := range deliveries[1:] {
		if d.CustomerID != customerID {
			return 0, shared.Violation(shared.ErrMixedClientDeliveries, "customer_id", d.CustomerID, fmt.Sprintf("= %d", customerID))
		}
	}
	return customerID, nil
}

// BuildInvoice aggregates deliveries into a PENDING invoice. It checks the
// batch and prices it; it does not touch the deliveries.
func BuildInvoice(deliveries []delivery.Delivery, terms InvoiceTerms) (Invoice, error) {
	customerID, err := CommonCustomer(deliveries)
	if err != nil {
		return Invoice{}, err
	}
	if terms.TaxRatePct.IsNegative() {
		return Invoice{}, shared.Violation(shared.ErrInvalidInput, "tax_rate_pct", terms.TaxRatePct, ">= 0")
	}
	if terms.TermsDays < 0 {
		return Invoice{}, shared.Violation(shared.ErrInvalidInput, "payment_terms_days", terms.TermsDays, ">= 0")
	}

	seen := make(map[int64]struct{}, len(deliveries))
	ids := make([]int64, 0, len(deliveries))
	net := decimal.Zero
	for _, d := range deliveries {
		if _, dup := seen[d.ID]; dup {
			return Invoice{}, shared.Violation(shared.ErrInvalidInput, "delivery_ids", d.ID, "unique")
		}
		seen[d.ID] = struct{}{}
		if d.Billed() {
			return Invoice{}, shared.Violation(shared.ErrAlreadyBilled, "delivery_id", d.ID, "")
		}
		if !d.TechnicalValidated && !terms.AcceptFlagged {
			return Invoice{}, shared.Violation(ErrDeliveryNotValidated, "delivery_id", d.ID, "")
		}
		ids = append(ids, d.ID)
		net = net.Add(d.LineAmount())
	}
	net = shared.Round2(net)
	tax, total := salesshared.CalculateTax(net, terms.TaxRatePct)

	return Invoice{
		CustomerID:  customerID,
		DeliveryIDs: ids,
		Subtotal:    net,
		TaxRatePct:  terms.TaxRatePct,
		TaxAmount:   tax,
		Total:       total,
		Status:      InvoiceStatusPending,
		IssuedAt:    terms.IssuedAt,
		DueAt:       terms.IssuedAt.AddDate(0, 0, terms.TermsDays),
	}, nil
}

// DaysOverdue counts whole days past the due date for an unpaid invoice.
func DaysOverdue(inv Invoice, now time.Time) int {
	if inv.Status == InvoiceStatusPaid || !now.After(inv.DueAt) {
		return 0
	}
	return int(now.Sub(inv.DueAt).Hours() / 24)
}

// CalculateAging groups outstanding balances by days past due.
func CalculateAging(invoices []Invoice, asOf time.Time) AgingBucket {
	var bucket AgingBucket
	for _, inv := range invoices {
		if inv.Status == InvoiceStatusPaid {
			continue
		}
		balance := inv.Balance()
		days := int(asOf.Sub(inv.DueAt).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(balance)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(balance)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(balance)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(balance)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(balance)
		}
	}
	return bucket
}
