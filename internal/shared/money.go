package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to cents.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Percent returns v × pct / 100.
func Percent(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred)
}

// Band is an inclusive [Min, Max] range.
type Band struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether v lies within the band.
func (b Band) Contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(b.Min) && v.LessThanOrEqual(b.Max)
}

func (b Band) String() string {
	return "[" + b.Min.String() + ", " + b.Max.String() + "]"
}

// CheckScale rejects v when it carries more fractional digits than the column
// storing it, so the stored value equals the one the engines computed with.
func CheckScale(field string, v decimal.Decimal, places int32) error {
	if v.Equal(v.Round(places)) {
		return nil
	}
	return Violation(ErrInvalidInput, field, v, fmt.Sprintf("at most %d decimals", places))
}
