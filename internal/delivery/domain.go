package delivery

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/sales/orders"
)

// ============================================================================
// PAYMENT STATUS
// ============================================================================

// PaymentStatus mirrors the status of the invoice a delivery was billed on.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// IsValid checks if the status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPartial, PaymentPaid:
		return true
	default:
		return false
	}
}

// ============================================================================
// DELIVERY ENTITY
// ============================================================================

// Delivery is one vehicle rotation (bon de livraison) against a sales order.
// Immutable once recorded except for PaymentStatus and ARInvoiceID.
type Delivery struct {
	ID                  int64           `json:"id" db:"id"`
	DocNumber           string          `json:"doc_number" db:"doc_number"`
	SalesOrderID        int64           `json:"sales_order_id" db:"sales_order_id"`
	CustomerID          int64           `json:"customer_id" db:"customer_id"`
	FormulaID           int64           `json:"formula_id" db:"formula_id"`
	VolumeM3            decimal.Decimal `json:"volume_m3" db:"volume_m3"`
	UnitPrice           decimal.Decimal `json:"unit_price" db:"unit_price"`
	ActualCementKg      decimal.Decimal `json:"actual_cement_kg" db:"actual_cement_kg"`
	TheoreticalCementKg decimal.Decimal `json:"theoretical_cement_kg" db:"theoretical_cement_kg"`
	VariancePct         decimal.Decimal `json:"variance_pct" db:"variance_pct"`
	TechnicalValidated  bool            `json:"technical_validated" db:"technical_validated"`
	PaymentStatus       PaymentStatus   `json:"payment_status" db:"payment_status"`
	ARInvoiceID         *int64          `json:"ar_invoice_id,omitempty" db:"ar_invoice_id"`
	VehicleNumber       *string         `json:"vehicle_number,omitempty" db:"vehicle_number"`
	DriverName          *string         `json:"driver_name,omitempty" db:"driver_name"`
	DeliveredAt         time.Time       `json:"delivered_at" db:"delivered_at"`
	CreatedBy           int64           `json:"created_by" db:"created_by"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// Billed reports whether the delivery is already on an invoice.
func (d Delivery) Billed() bool {
	return d.ARInvoiceID != nil
}

// LineAmount is volume × locked unit price.
func (d Delivery) LineAmount() decimal.Decimal {
	return d.VolumeM3.Mul(d.UnitPrice)
}

// ============================================================================
// REQUEST/RESPONSE DTOs
// ============================================================================

// RecordDeliveryRequest is the input for a rotation.
type RecordDeliveryRequest struct {
	SalesOrderID   int64           `json:"-"`
	VolumeM3       decimal.Decimal `json:"volume_m3"`
	ActualCementKg decimal.Decimal `json:"actual_cement_kg"`
	VehicleNumber  *string         `json:"vehicle_number,omitempty" validate:"omitempty,max=50"`
	DriverName     *string         `json:"driver_name,omitempty" validate:"omitempty,max=200"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
}

// RecordDeliveryResult returns the delivery with the order as updated in the same transaction.
type RecordDeliveryResult struct {
	Delivery *Delivery          `json:"delivery"`
	Order    *orders.SalesOrder `json:"order"`
	Variance CementVariance     `json:"variance"`
}
