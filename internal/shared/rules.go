package shared

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditGateMode selects whether order creation consults the credit gate.
type CreditGateMode string

const (
	// CreditGateAdvisory exposes the decision without blocking.
	CreditGateAdvisory CreditGateMode = "advisory"
	// CreditGateEnforced rejects orders that would exceed the ceiling.
	CreditGateEnforced CreditGateMode = "enforced"
)

// IsValid checks the mode.
func (m CreditGateMode) IsValid() bool {
	return m == CreditGateAdvisory || m == CreditGateEnforced
}

// Rules gathers the business thresholds shared by the engines.
type Rules struct {
	CementBandKg                 Band
	WaterCementRatioBand         Band
	DeliveryVarianceTolerancePct decimal.Decimal
	MaxVehicleVolumeM3           decimal.Decimal
	DefaultTaxRatePct            decimal.Decimal
	CashMonthlyCeiling           decimal.Decimal
	CashPenaltyRatePct           decimal.Decimal
	StampDutyRatePct             decimal.Decimal
	CreditGateMode               CreditGateMode
}

// DefaultRules returns the reference thresholds.
func DefaultRules() Rules {
	return Rules{
		CementBandKg:                 Band{Min: decimal.NewFromInt(200), Max: decimal.NewFromInt(500)},
		WaterCementRatioBand:         Band{Min: decimal.RequireFromString("0.35"), Max: decimal.RequireFromString("0.65")},
		DeliveryVarianceTolerancePct: decimal.NewFromInt(5),
		MaxVehicleVolumeM3:           decimal.NewFromInt(12),
		DefaultTaxRatePct:            decimal.NewFromInt(20),
		CashMonthlyCeiling:           decimal.NewFromInt(50000),
		CashPenaltyRatePct:           decimal.NewFromInt(6),
		StampDutyRatePct:             decimal.RequireFromString("0.25"),
		CreditGateMode:               CreditGateAdvisory,
	}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct{ At time.Time }

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.At }
