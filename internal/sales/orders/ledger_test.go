package orders

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/shared"
)

var maxVehicle = decimal.NewFromInt(12)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newOrder(t *testing.T, ordered string) SalesOrder {
	t.Helper()
	ledger, err := NewLedger(d(ordered))
	require.NoError(t, err)
	return SalesOrder{ID: 1, Status: SalesOrderStatusActive, Ledger: ledger}
}

func TestPartialDeliveriesThenCompletion(t *testing.T) {
	at := time.Date(2026, 10, 6, 7, 30, 0, 0, time.UTC)
	o := newOrder(t, "50")

	var err error
	for i := 0; i < 3; i++ {
		o, err = o.ApplyDelivery(d("8"), maxVehicle, at)
		require.NoError(t, err)
	}
	assert.True(t, o.Ledger.Delivered().Equal(d("24")))
	assert.True(t, o.Ledger.Remaining().Equal(d("26")))
	assert.Equal(t, SalesOrderStatusActive, o.Status)

	// 26 exceeds one vehicle, so the order-level ledger takes it directly.
	ledger, err := o.Ledger.ApplyDelivery(d("26"))
	require.NoError(t, err)
	assert.True(t, ledger.Remaining().IsZero())
	assert.True(t, ledger.Exhausted())

	for _, v := range []string{"12", "12", "2"} {
		o, err = o.ApplyDelivery(d(v), maxVehicle, at)
		require.NoError(t, err)
	}
	assert.True(t, o.Ledger.Remaining().IsZero())
	assert.Equal(t, SalesOrderStatusCompleted, o.Status)
	require.NotNil(t, o.CompletedAt)

	_, err = o.ApplyDelivery(d("1"), maxVehicle, at)
	assert.ErrorIs(t, err, shared.ErrOrderClosed)
}

func TestApplyDeliveryValidationOrder(t *testing.T) {
	at := time.Now()
	o := newOrder(t, "10")

	_, err := o.ApplyDelivery(d("13"), maxVehicle, at)
	assert.ErrorIs(t, err, shared.ErrVolumeOutOfRange)
	_, err = o.ApplyDelivery(d("0"), maxVehicle, at)
	assert.ErrorIs(t, err, shared.ErrVolumeOutOfRange)
	_, err = o.ApplyDelivery(d("11"), maxVehicle, at)
	assert.ErrorIs(t, err, shared.ErrVolumeExceedsRemaining)

	completed := o
	completed.Status = SalesOrderStatusCompleted
	_, err = completed.ApplyDelivery(d("13"), maxVehicle, at)
	assert.ErrorIs(t, err, shared.ErrOrderClosed)
}

func TestFailedDeliveryLeavesOrderUnchanged(t *testing.T) {
	o := newOrder(t, "10")
	next, err := o.ApplyDelivery(d("11"), maxVehicle, time.Now())
	require.Error(t, err)
	assert.Equal(t, o, next)
	assert.True(t, o.Ledger.Remaining().Equal(d("10")))
}

func TestRestoreLedgerRejectsBrokenInvariant(t *testing.T) {
	_, err := RestoreLedger(d("50"), d("24"), d("25"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = RestoreLedger(d("50"), d("51"), d("-1"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewLedger(d("0"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestLedgerInvariantUnderRandomDeliveries(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 500; run++ {
		ordered := decimal.NewFromInt(int64(rng.Intn(60) + 1))
		l, err := NewLedger(ordered)
		require.NoError(t, err)
		for step := 0; step < 20; step++ {
			v := decimal.NewFromFloat(float64(rng.Intn(140)-10) / 10)
			next, err := l.ApplyDelivery(v)
			if err == nil {
				l = next
			}
			require.True(t, l.Delivered().Add(l.Remaining()).Equal(l.Ordered()))
			require.False(t, l.Remaining().IsNegative())
		}
	}
}
