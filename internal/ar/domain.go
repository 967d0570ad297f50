package ar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/compliance"
	"github.com/concreta/concreta/internal/delivery"
)

// InvoiceStatus enumerates AR invoice payment statuses.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
)

// DeliveryStatus is the payment status the invoice's deliveries take.
func (s InvoiceStatus) DeliveryStatus() delivery.PaymentStatus {
	return delivery.PaymentStatus(s)
}

// PaymentMethod enumerates how a client settled.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCheck    PaymentMethod = "CHECK"
)

// IsValid checks the method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCheck:
		return true
	}
	return false
}

// Invoice model. Line items are the deliveries it bills.
type Invoice struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	CustomerID    int64           `json:"customer_id"`
	DeliveryIDs   []int64         `json:"delivery_ids"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRatePct    decimal.Decimal `json:"tax_rate_pct"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	CreditAccrued decimal.Decimal `json:"credit_accrued"`
	Status        InvoiceStatus   `json:"status"`
	IssuedAt      time.Time       `json:"issued_at"`
	DueAt         time.Time       `json:"due_at"`
	DaysOverdue   int             `json:"days_overdue"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Balance is what remains to be paid, never negative.
func (inv Invoice) Balance() decimal.Decimal {
	b := inv.Total.Sub(inv.PaidAmount)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// Payment model.
type Payment struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	ARInvoiceID   int64           `json:"ar_invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	PaidAt        time.Time       `json:"paid_at"`
	OverrideBy    *int64          `json:"override_by,omitempty"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount"`
	StampDuty     decimal.Decimal `json:"stamp_duty"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GenerateInvoiceRequest bills a set of deliveries of one client.
type GenerateInvoiceRequest struct {
	DeliveryIDs      []int64          `json:"delivery_ids" validate:"required,min=1,dive,gt=0"`
	TaxRatePct       *decimal.Decimal `json:"tax_rate_pct,omitempty"`
	PaymentTermsDays *int             `json:"payment_terms_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	AcceptFlagged    bool             `json:"accept_flagged,omitempty"`
}

// ApplyPaymentRequest posts a payment against an invoice.
type ApplyPaymentRequest struct {
	InvoiceID      int64                `json:"-"`
	Amount         decimal.Decimal      `json:"amount"`
	Method         PaymentMethod        `json:"method" validate:"required,oneof=CASH TRANSFER CHECK"`
	PaidAt         *time.Time           `json:"paid_at,omitempty"`
	Note           string               `json:"note,omitempty" validate:"max=500"`
	Override       *compliance.Override `json:"override,omitempty"`
	IdempotencyKey string               `json:"-"`
}

// PaymentResult returns the payment with the invoice as updated in the same transaction.
type PaymentResult struct {
	Invoice     *Invoice           `json:"invoice"`
	Payment     *Payment           `json:"payment"`
	CreditDelta decimal.Decimal    `json:"credit_delta"`
	Compliance  *compliance.Result `json:"compliance,omitempty"`
}

// ListInvoicesRequest filters invoice listings.
type ListInvoicesRequest struct {
	CustomerID *int64
	Status     *InvoiceStatus
	Limit      int
	Offset     int
}

// AgingBucket summarises outstanding balances by days past due.
type AgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
}
