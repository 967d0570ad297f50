package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTotals(t *testing.T) {
	net, tax, total := CalculateTotals(decimal.NewFromInt(14), decimal.NewFromInt(950), decimal.NewFromInt(20))
	assert.Equal(t, "13300", net.String())
	assert.Equal(t, "2660", tax.String())
	assert.Equal(t, "15960", total.String())
}

func TestCalculateTaxRoundsToCents(t *testing.T) {
	tax, total := CalculateTax(decimal.RequireFromString("10.05"), decimal.NewFromInt(7))
	assert.Equal(t, "0.7", tax.String())
	assert.Equal(t, "10.75", total.String())
}
