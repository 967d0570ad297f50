// Package shared holds pricing arithmetic common to quotations and orders.
package shared

import (
	"github.com/shopspring/decimal"

	core "github.com/concreta/concreta/internal/shared"
)

// CalculateLineNet returns volume × unitPrice rounded to cents.
func CalculateLineNet(volume, unitPrice decimal.Decimal) decimal.Decimal {
	return core.Round2(volume.Mul(unitPrice))
}

// CalculateTax splits a net amount into its tax and tax-inclusive total.
func CalculateTax(net, taxPercent decimal.Decimal) (taxAmount, total decimal.Decimal) {
	taxAmount = core.Round2(core.Percent(net, taxPercent))
	total = net.Add(taxAmount)
	return
}

// CalculateTotals prices a single volume line.
func CalculateTotals(volume, unitPrice, taxPercent decimal.Decimal) (net, taxAmount, total decimal.Decimal) {
	net = CalculateLineNet(volume, unitPrice)
	taxAmount, total = CalculateTax(net, taxPercent)
	return
}
