// Package formulas is the read-only catalog of concrete mix designs.
package formulas

import (
	"time"

	"github.com/shopspring/decimal"
)

// Formula is a mix design with theoretical material quantities per cubic meter.
type Formula struct {
	ID               int64           `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	StrengthClass    string          `json:"strength_class"`
	CementKgPerM3    decimal.Decimal `json:"cement_kg_per_m3"`
	SandKgPerM3      decimal.Decimal `json:"sand_kg_per_m3"`
	GravelKgPerM3    decimal.Decimal `json:"gravel_kg_per_m3"`
	WaterLPerM3      decimal.Decimal `json:"water_l_per_m3"`
	AdmixtureKgPerM3 decimal.Decimal `json:"admixture_kg_per_m3"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
}

// WaterCementRatio returns water mass over cement mass (1 L of water = 1 kg).
// A formula without cement has no defined ratio and reports zero.
func (f Formula) WaterCementRatio() decimal.Decimal {
	if !f.CementKgPerM3.IsPositive() {
		return decimal.Zero
	}
	return f.WaterLPerM3.Div(f.CementKgPerM3)
}

// TheoreticalCementKg returns the cement mass the recipe calls for at volume m³.
func (f Formula) TheoreticalCementKg(volumeM3 decimal.Decimal) decimal.Decimal {
	return f.CementKgPerM3.Mul(volumeM3)
}
