package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/shared"
)

type SalesOrderStatus string

const (
	SalesOrderStatusActive    SalesOrderStatus = "ACTIVE"
	SalesOrderStatusCompleted SalesOrderStatus = "COMPLETED"
)

// SalesOrder is a purchase order (bon de commande) with its volume ledger.
type SalesOrder struct {
	ID              int64            `json:"id" db:"id"`
	DocNumber       string           `json:"doc_number" db:"doc_number"`
	CustomerID      int64            `json:"customer_id" db:"customer_id"`
	FormulaID       int64            `json:"formula_id" db:"formula_id"`
	QuotationID     int64            `json:"quotation_id" db:"quotation_id"`
	UnitPrice       decimal.Decimal  `json:"unit_price" db:"unit_price"`
	TaxRatePct      decimal.Decimal  `json:"tax_rate_pct" db:"tax_rate_pct"`
	Status          SalesOrderStatus `json:"status" db:"status"`
	Ledger          VolumeLedger     `json:"ledger" db:"-"`
	DeliveryAddress *string          `json:"delivery_address,omitempty" db:"delivery_address"`
	CreatedBy       int64            `json:"created_by" db:"created_by"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}

// ApplyDelivery checks a delivery against the order and returns the updated
// order. The receiver is never modified. Checks run closed, then vehicle range,
// then remaining volume.
func (o SalesOrder) ApplyDelivery(volume, maxVehicleM3 decimal.Decimal, at time.Time) (SalesOrder, error) {
	if o.Status == SalesOrderStatusCompleted {
		return o, shared.Violation(shared.ErrOrderClosed, "sales_order_id", o.ID, "status "+string(o.Status))
	}
	if !volume.IsPositive() || volume.GreaterThan(maxVehicleM3) {
		return o, shared.Violation(shared.ErrVolumeOutOfRange, "volume_m3", volume, "(0, "+maxVehicleM3.String()+"]")
	}
	ledger, err := o.Ledger.ApplyDelivery(volume)
	if err != nil {
		return o, err
	}
	next := o
	next.Ledger = ledger
	next.UpdatedAt = at
	if ledger.Exhausted() {
		next.Status = SalesOrderStatusCompleted
		next.CompletedAt = &at
	}
	return next, nil
}
