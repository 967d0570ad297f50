package ar

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/delivery"
	"github.com/concreta/concreta/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rotation(id, customerID int64, volume string) delivery.Delivery {
	return delivery.Delivery{
		ID:                 id,
		CustomerID:         customerID,
		VolumeM3:           dec(volume),
		UnitPrice:          dec("950"),
		TechnicalValidated: true,
		PaymentStatus:      delivery.PaymentPending,
	}
}

var issued = time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)

func TestBuildInvoiceTotals(t *testing.T) {
	inv, err := BuildInvoice([]delivery.Delivery{rotation(1, 5, "8"), rotation(2, 5, "6")},
		InvoiceTerms{TaxRatePct: dec("20"), TermsDays: 30, IssuedAt: issued})
	require.NoError(t, err)

	assert.True(t, inv.Subtotal.Equal(dec("13300")), inv.Subtotal.String())
	assert.True(t, inv.TaxAmount.Equal(dec("2660")), inv.TaxAmount.String())
	assert.True(t, inv.Total.Equal(dec("15960")), inv.Total.String())
	assert.Equal(t, InvoiceStatusPending, inv.Status)
	assert.Equal(t, int64(5), inv.CustomerID)
	assert.Equal(t, []int64{1, 2}, inv.DeliveryIDs)
	assert.Equal(t, issued.AddDate(0, 0, 30), inv.DueAt)
}

func TestBuildInvoiceRejections(t *testing.T) {
	billedID := int64(99)
	billed := rotation(3, 5, "4")
	billed.ARInvoiceID = &billedID
	flagged := rotation(4, 5, "4")
	flagged.TechnicalValidated = false
	terms := InvoiceTerms{TaxRatePct: dec("20"), TermsDays: 30, IssuedAt: issued}

	cases := []struct {
		name       string
		deliveries []delivery.Delivery
		terms      InvoiceTerms
		want       error
	}{
		{"empty", nil, terms, shared.ErrInvalidInput},
		{"mixed clients", []delivery.Delivery{rotation(1, 5, "8"), rotation(2, 6, "6")}, terms, shared.ErrMixedClientDeliveries},
		{"already billed", []delivery.Delivery{rotation(1, 5, "8"), billed}, terms, shared.ErrAlreadyBilled},
		{"duplicate", []delivery.Delivery{rotation(1, 5, "8"), rotation(1, 5, "8")}, terms, shared.ErrInvalidInput},
		{"variance flagged", []delivery.Delivery{flagged}, terms, ErrDeliveryNotValidated},
		{"negative tax", []delivery.Delivery{rotation(1, 5, "8")}, InvoiceTerms{TaxRatePct: dec("-1"), IssuedAt: issued}, shared.ErrInvalidInput},
		{"negative terms", []delivery.Delivery{rotation(1, 5, "8")}, InvoiceTerms{TaxRatePct: dec("20"), TermsDays: -1, IssuedAt: issued}, shared.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildInvoice(tc.deliveries, tc.terms)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBuildInvoiceAcceptsFlaggedWhenAsked(t *testing.T) {
	flagged := rotation(4, 5, "4")
	flagged.TechnicalValidated = false
	inv, err := BuildInvoice([]delivery.Delivery{flagged},
		InvoiceTerms{TaxRatePct: dec("20"), IssuedAt: issued, AcceptFlagged: true})
	require.NoError(t, err)
	assert.True(t, inv.Subtotal.Equal(dec("3800")))
}

func TestDaysOverdue(t *testing.T) {
	inv := Invoice{Status: InvoiceStatusPending, DueAt: issued}
	assert.Equal(t, 0, DaysOverdue(inv, issued.Add(-time.Hour)))
	assert.Equal(t, 0, DaysOverdue(inv, issued.Add(23*time.Hour)))
	assert.Equal(t, 12, DaysOverdue(inv, issued.AddDate(0, 0, 12)))

	inv.Status = InvoiceStatusPaid
	assert.Equal(t, 0, DaysOverdue(inv, issued.AddDate(0, 0, 12)))
}

func TestCalculateAging(t *testing.T) {
	asOf := issued.AddDate(0, 0, 100)
	invoices := []Invoice{
		{Status: InvoiceStatusPending, Total: dec("1000"), DueAt: asOf.AddDate(0, 0, 5)},
		{Status: InvoiceStatusPartial, Total: dec("1000"), PaidAmount: dec("400"), DueAt: asOf.AddDate(0, 0, -10)},
		{Status: InvoiceStatusPending, Total: dec("500"), DueAt: asOf.AddDate(0, 0, -45)},
		{Status: InvoiceStatusPending, Total: dec("700"), DueAt: asOf.AddDate(0, 0, -75)},
		{Status: InvoiceStatusPending, Total: dec("900"), DueAt: asOf.AddDate(0, 0, -200)},
		{Status: InvoiceStatusPaid, Total: dec("5000"), PaidAmount: dec("5000"), DueAt: asOf.AddDate(0, 0, -200)},
	}
	b := CalculateAging(invoices, asOf)
	assert.True(t, b.Current.Equal(dec("1000")))
	assert.True(t, b.Bucket30.Equal(dec("600")))
	assert.True(t, b.Bucket60.Equal(dec("500")))
	assert.True(t, b.Bucket90.Equal(dec("700")))
	assert.True(t, b.Bucket120.Equal(dec("900")))
}
