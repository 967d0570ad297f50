package quotations

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateQuotationRequest struct {
	CustomerID int64            `json:"customer_id" validate:"required,gt=0"`
	FormulaID  int64            `json:"formula_id" validate:"required,gt=0"`
	VolumeM3   decimal.Decimal  `json:"volume_m3"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	TaxRatePct *decimal.Decimal `json:"tax_rate_pct,omitempty"`
	ValidUntil *time.Time       `json:"valid_until,omitempty"`
	Notes      *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type RejectQuotationRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type ListQuotationsRequest struct {
	CustomerID *int64
	Stage      *Stage
	Limit      int
	Offset     int
}
