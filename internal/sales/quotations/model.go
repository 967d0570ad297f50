package quotations

import (
	"time"

	"github.com/shopspring/decimal"
)

type Quotation struct {
	ID              int64           `json:"id" db:"id"`
	DocNumber       string          `json:"doc_number" db:"doc_number"`
	CustomerID      int64           `json:"customer_id" db:"customer_id"`
	FormulaID       int64           `json:"formula_id" db:"formula_id"`
	VolumeM3        decimal.Decimal `json:"volume_m3" db:"volume_m3"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
	TaxRatePct      decimal.Decimal `json:"tax_rate_pct" db:"tax_rate_pct"`
	NetAmount       decimal.Decimal `json:"net_amount" db:"net_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Handshake       Handshake       `json:"handshake" db:"-"`
	TechnicalBy     *int64          `json:"technical_by,omitempty" db:"technical_by"`
	TechnicalAt     *time.Time      `json:"technical_at,omitempty" db:"technical_at"`
	ApprovedBy      *int64          `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy      *int64          `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectionReason *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty" db:"valid_until"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	CreatedBy       int64           `json:"created_by" db:"created_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Status mirrors the handshake stage.
func (q Quotation) Status() Stage {
	return q.Handshake.Stage()
}

// Transition is the persisted outcome of one handshake step.
type Transition struct {
	Next   Handshake
	Actor  int64
	At     time.Time
	Reason *string
}
