package delivery

import (
	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// CementVariance compares actual cement use to the formula.
type CementVariance struct {
	TheoreticalKg decimal.Decimal `json:"theoretical_kg"`
	ActualKg      decimal.Decimal `json:"actual_kg"`
	VariancePct   decimal.Decimal `json:"variance_pct"`
	Validated     bool            `json:"validated"`
}

// ComputeCementVariance returns (actual − theoretical) / theoretical × 100 rounded
// to two decimals; the delivery is validated when |variance| <= tolerancePct.
func ComputeCementVariance(cementKgPerM3, volumeM3, actualKg, tolerancePct decimal.Decimal) (CementVariance, error) {
	if actualKg.IsNegative() {
		return CementVariance{}, shared.Violation(shared.ErrInvalidInput, "actual_cement_kg", actualKg, ">= 0")
	}
	theoretical := cementKgPerM3.Mul(volumeM3)
	if !theoretical.IsPositive() {
		return CementVariance{}, shared.Violation(shared.ErrInvalidInput, "theoretical_cement_kg", theoretical, "> 0")
	}
	pct := shared.Round2(actualKg.Sub(theoretical).Div(theoretical).Mul(hundred))
	return CementVariance{
		TheoreticalKg: shared.Round2(theoretical),
		ActualKg:      actualKg,
		VariancePct:   pct,
		Validated:     pct.Abs().LessThanOrEqual(tolerancePct),
	}, nil
}
