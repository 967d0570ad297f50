package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/formulas"
	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/platform/lock"
	"github.com/concreta/concreta/internal/sales/orders"
	"github.com/concreta/concreta/internal/shared"
)

// ============================================================================
// IN-MEMORY STORE
// ============================================================================

type memoryStore struct {
	mu         sync.Mutex
	orders     map[int64]orders.SalesOrder
	deliveries map[int64]Delivery
	nextID     int64
	seq        int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: map[int64]orders.SalesOrder{}, deliveries: map[int64]Delivery{}}
}

// memoryTx buffers writes and applies them only when the callback succeeds.
type memoryTx struct {
	store      *memoryStore
	orders     map[int64]orders.SalesOrder
	deliveries []Delivery
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{store: m, orders: map[int64]orders.SalesOrder{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, o := range tx.orders {
		m.orders[id] = o
	}
	for _, d := range tx.deliveries {
		m.deliveries[d.ID] = d
	}
	return nil
}

func (t *memoryTx) LockSalesOrder(ctx context.Context, id int64) (*orders.SalesOrder, error) {
	o, ok := t.store.orders[id]
	if !ok {
		return nil, fmt.Errorf("sales order %d: %w", id, shared.ErrNotFound)
	}
	return &o, nil
}

func (t *memoryTx) SaveSalesOrder(ctx context.Context, o orders.SalesOrder) error {
	t.orders[o.ID] = o
	return nil
}

func (t *memoryTx) InsertDelivery(ctx context.Context, d Delivery) (int64, error) {
	t.store.nextID++
	d.ID = t.store.nextID
	t.deliveries = append(t.deliveries, d)
	return d.ID, nil
}

func (t *memoryTx) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	t.store.seq++
	return shared.DocNumber(docPrefix, date.Year(), int(date.Month()), t.store.seq), nil
}

func (m *memoryStore) GetDelivery(ctx context.Context, id int64) (*Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}

func (m *memoryStore) ListBySalesOrder(ctx context.Context, salesOrderID int64) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Delivery
	for _, d := range m.deliveries {
		if d.SalesOrderID == salesOrderID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryStore) ListUnbilled(ctx context.Context, customerID int64) ([]Delivery, error) {
	return nil, nil
}

func (m *memoryStore) order(id int64) orders.SalesOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type stubFormulas map[int64]formulas.Formula

func (s stubFormulas) Get(ctx context.Context, id int64) (*formulas.Formula, error) {
	f, ok := s[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &f, nil
}

// ============================================================================
// FIXTURE
// ============================================================================

type fixture struct {
	svc      *Service
	store    *memoryStore
	notifier *notify.Recorder
}

func newFixture(t *testing.T, ordered string) fixture {
	t.Helper()
	store := newMemoryStore()
	ledger, err := orders.NewLedger(dec(ordered))
	require.NoError(t, err)
	store.orders[1] = orders.SalesOrder{
		ID: 1, DocNumber: "BC-202610-00001", CustomerID: 7, FormulaID: 1,
		UnitPrice: dec("950"), TaxRatePct: dec("20"), Status: orders.SalesOrderStatusActive, Ledger: ledger,
	}
	rec := &notify.Recorder{}
	svc := NewService(Deps{
		Store:    store,
		Formulas: stubFormulas{1: {ID: 1, Code: "B25", CementKgPerM3: dec("350"), WaterLPerM3: dec("175")}},
		Locker:   lock.NewLocal(),
		Notifier: rec,
		Rules:    shared.DefaultRules(),
		Clock:    shared.FixedClock{At: time.Date(2026, 10, 7, 6, 45, 0, 0, time.UTC)},
	})
	return fixture{svc: svc, store: store, notifier: rec}
}

func (f fixture) record(volume, cement string) (*RecordDeliveryResult, error) {
	return f.svc.RecordDelivery(context.Background(), RecordDeliveryRequest{
		SalesOrderID: 1, VolumeM3: dec(volume), ActualCementKg: dec(cement),
	}, 3)
}

// ============================================================================
// TESTS
// ============================================================================

func TestRecordDeliveryVariance(t *testing.T) {
	f := newFixture(t, "50")

	res, err := f.record("8", "2800")
	require.NoError(t, err)
	assert.True(t, res.Delivery.VariancePct.IsZero())
	assert.True(t, res.Delivery.TechnicalValidated)
	assert.True(t, res.Delivery.UnitPrice.Equal(dec("950")))
	assert.Equal(t, int64(7), res.Delivery.CustomerID)
	assert.Equal(t, PaymentPending, res.Delivery.PaymentStatus)

	res, err = f.record("8", "3080")
	require.NoError(t, err)
	assert.True(t, res.Delivery.VariancePct.Equal(dec("10")))
	assert.False(t, res.Delivery.TechnicalValidated)
	assert.Equal(t, []notify.Kind{notify.KindVarianceFlagged}, f.notifier.Kinds())
}

func TestRecordDeliveryLedgerLifecycle(t *testing.T) {
	f := newFixture(t, "50")
	for i := 0; i < 3; i++ {
		_, err := f.record("8", "2800")
		require.NoError(t, err)
	}
	o := f.store.order(1)
	assert.True(t, o.Ledger.Delivered().Equal(dec("24")))
	assert.True(t, o.Ledger.Remaining().Equal(dec("26")))
	assert.Equal(t, orders.SalesOrderStatusActive, o.Status)

	_, err := f.record("13", "4550")
	assert.ErrorIs(t, err, shared.ErrVolumeOutOfRange)

	for _, v := range []string{"12", "12"} {
		_, err := f.record(v, "4200")
		require.NoError(t, err)
	}
	_, err = f.record("3", "1050")
	assert.ErrorIs(t, err, shared.ErrVolumeExceedsRemaining)

	res, err := f.record("2", "700")
	require.NoError(t, err)
	assert.Equal(t, orders.SalesOrderStatusCompleted, res.Order.Status)
	assert.True(t, res.Order.Ledger.Remaining().IsZero())
	assert.Contains(t, f.notifier.Kinds(), notify.KindOrderCompleted)

	_, err = f.record("1", "350")
	assert.ErrorIs(t, err, shared.ErrOrderClosed)

	deliveries, err := f.svc.ListBySalesOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, deliveries, 6)
}

func TestRejectedDeliveryLeavesNoTrace(t *testing.T) {
	f := newFixture(t, "10")
	_, err := f.record("11", "3850")
	require.ErrorIs(t, err, shared.ErrVolumeExceedsRemaining)
	_, err = f.record("8", "-5")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	o := f.store.order(1)
	assert.True(t, o.Ledger.Remaining().Equal(dec("10")))
	assert.Empty(t, f.store.deliveries)
}

func TestRecordDeliveryRejectsSubCentValues(t *testing.T) {
	f := newFixture(t, "10")

	_, err := f.record("9.996", "3500")
	var violation *shared.ViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "volume_m3", violation.Field)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.record("8", "2800.125")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Empty(t, f.store.deliveries)
	assert.True(t, f.store.orders[1].Ledger.Remaining().Equal(dec("10")))

	res, err := f.record("9.99", "3496.50")
	require.NoError(t, err)
	assert.True(t, res.Order.Ledger.Remaining().Equal(dec("0.01")))

	res, err = f.record("0.01", "3.50")
	require.NoError(t, err)
	assert.Equal(t, orders.SalesOrderStatusCompleted, res.Order.Status)

	_, err = f.record("0.01", "3.50")
	assert.ErrorIs(t, err, shared.ErrOrderClosed)
}

func TestConcurrentDeliveriesNeverOverdraw(t *testing.T) {
	f := newFixture(t, "50")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exceeded  int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.record("3", "1050")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrVolumeExceedsRemaining):
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, succeeded)
	assert.Equal(t, 4, exceeded)
	o := f.store.order(1)
	assert.True(t, o.Ledger.Delivered().Equal(decimal.NewFromInt(48)))
	assert.True(t, o.Ledger.Remaining().Equal(decimal.NewFromInt(2)))
}
