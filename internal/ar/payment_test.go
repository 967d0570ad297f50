package ar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/shared"
)

func TestSettlePartialThenFull(t *testing.T) {
	inv := Invoice{Number: "FA-202610-00001", Total: dec("12000"), Status: InvoiceStatusPending}

	first, err := Settle(inv, dec("8000"))
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPartial, first.Invoice.Status)
	assert.True(t, first.CreditDelta.Equal(dec("4000")), first.CreditDelta.String())
	assert.True(t, first.Invoice.CreditAccrued.Equal(dec("4000")))
	assert.True(t, inv.PaidAmount.IsZero(), "input must not be mutated")

	second, err := Settle(first.Invoice, dec("1000"))
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPartial, second.Invoice.Status)
	assert.True(t, second.CreditDelta.Equal(dec("-1000")))
	assert.True(t, second.Invoice.CreditAccrued.Equal(dec("3000")))

	final, err := Settle(second.Invoice, dec("3000"))
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, final.Invoice.Status)
	assert.True(t, final.CreditDelta.Equal(dec("-3000")))
	assert.True(t, final.Invoice.CreditAccrued.IsZero())
	assert.True(t, final.Invoice.Balance().IsZero())

	_, err = Settle(final.Invoice, dec("1"))
	require.ErrorIs(t, err, ErrInvoicePaid)
	require.ErrorIs(t, err, shared.ErrSequenceViolation)
}

func TestSettleFullPaymentHasNoCreditEffect(t *testing.T) {
	inv := Invoice{Total: dec("15960"), Status: InvoiceStatusPending}
	s, err := Settle(inv, dec("15960"))
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, s.Invoice.Status)
	assert.True(t, s.CreditDelta.IsZero())
}

func TestSettleOverpaymentMarksPaid(t *testing.T) {
	inv := Invoice{Total: dec("1000"), Status: InvoiceStatusPending}
	s, err := Settle(inv, dec("1200"))
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, s.Invoice.Status)
	assert.True(t, s.Invoice.PaidAmount.Equal(dec("1200")))
	assert.True(t, s.Invoice.Balance().IsZero())
}

func TestSettleRejectsNonPositive(t *testing.T) {
	inv := Invoice{Total: dec("1000"), Status: InvoiceStatusPending}
	for _, amount := range []string{"0", "-5"} {
		_, err := Settle(inv, dec(amount))
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	}
}
