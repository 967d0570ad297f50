package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/sales/customers"
	"github.com/concreta/concreta/internal/sales/quotations"
	"github.com/concreta/concreta/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	orders map[int64]SalesOrder
	nextID int64
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{orders: map[int64]SalesOrder{}} }

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("sales order %d: %w", id, shared.ErrNotFound)
	}
	return &o, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*SalesOrder, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) GetByQuotation(ctx context.Context, quotationID int64) (*SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.QuotationID == quotationID {
			return &o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) List(ctx context.Context, req ListSalesOrdersRequest) ([]SalesOrder, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) Create(ctx context.Context, o SalesOrder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	m.orders[o.ID] = o
	return o.ID, nil
}

func (m *memoryRepo) SaveLedger(ctx context.Context, o SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *memoryRepo) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.DocNumber(docPrefix, date.Year(), int(date.Month()), m.nextID+1), nil
}

type stubQuotes map[int64]quotations.Quotation

func (s stubQuotes) Get(ctx context.Context, id int64) (*quotations.Quotation, error) {
	q, ok := s[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &q, nil
}

type stubCredit struct {
	customer customers.Customer
	calls    int
}

func (s *stubCredit) CheckCredit(ctx context.Context, id int64, projected decimal.Decimal) (customers.CreditDecision, error) {
	s.calls++
	return customers.CreditGate(s.customer, projected), nil
}

func approvedQuote(t *testing.T, id int64, volume, total string) quotations.Quotation {
	t.Helper()
	h, err := quotations.RestoreHandshake(quotations.StageApproved, true, true)
	require.NoError(t, err)
	return quotations.Quotation{
		ID: id, DocNumber: fmt.Sprintf("QT-202610-%05d", id), CustomerID: 1, FormulaID: 1,
		VolumeM3: d(volume), UnitPrice: d("950"), TaxRatePct: d("20"), TotalAmount: d(total), Handshake: h,
	}
}

func newService(t *testing.T, mode shared.CreditGateMode, used string, quotes stubQuotes) (*Service, *memoryRepo, *stubCredit, *notify.Recorder) {
	t.Helper()
	repo := newMemoryRepo()
	credit := &stubCredit{customer: customers.Customer{ID: 1, CreditLimit: d("100000"), CreditUsed: d(used)}}
	rec := &notify.Recorder{}
	svc := NewService(Deps{
		Repo:     repo,
		Quotes:   quotes,
		Credit:   credit,
		Notifier: rec,
		Mode:     mode,
		Clock:    shared.FixedClock{At: time.Date(2026, 10, 6, 8, 0, 0, 0, time.UTC)},
	})
	return svc, repo, credit, rec
}

func TestCreateFromApprovedQuotation(t *testing.T) {
	quotes := stubQuotes{1: approvedQuote(t, 1, "50", "57000")}
	svc, _, _, _ := newService(t, shared.CreditGateAdvisory, "0", quotes)

	res, err := svc.CreateFromQuotation(context.Background(), CreateFromQuotationRequest{QuotationID: 1}, 5)
	require.NoError(t, err)
	o := res.Order
	assert.Equal(t, SalesOrderStatusActive, o.Status)
	assert.True(t, o.Ledger.Ordered().Equal(d("50")))
	assert.True(t, o.Ledger.Remaining().Equal(d("50")))
	assert.True(t, o.Ledger.Delivered().IsZero())
	assert.True(t, o.UnitPrice.Equal(d("950")))
	require.NotNil(t, res.Credit)
	assert.True(t, res.Credit.Allowed)

	_, err = svc.CreateFromQuotation(context.Background(), CreateFromQuotationRequest{QuotationID: 1}, 5)
	assert.ErrorIs(t, err, ErrQuoteAlreadyConverted)
}

func TestCreateFromUnapprovedQuotationFails(t *testing.T) {
	q := approvedQuote(t, 2, "10", "11400")
	q.Handshake = quotations.NewHandshake()
	svc, repo, _, _ := newService(t, shared.CreditGateAdvisory, "0", stubQuotes{2: q})

	_, err := svc.CreateFromQuotation(context.Background(), CreateFromQuotationRequest{QuotationID: 2}, 5)
	assert.ErrorIs(t, err, shared.ErrQuoteNotApproved)
	assert.Empty(t, repo.orders)
}

func TestCreditGateModes(t *testing.T) {
	quotes := stubQuotes{3: approvedQuote(t, 3, "25", "30000")}

	t.Run("enforced denies", func(t *testing.T) {
		svc, repo, credit, rec := newService(t, shared.CreditGateEnforced, "80000", quotes)
		_, err := svc.CreateFromQuotation(context.Background(), CreateFromQuotationRequest{QuotationID: 3}, 5)
		assert.ErrorIs(t, err, shared.ErrCreditLimitExceeded)
		assert.Empty(t, repo.orders)
		assert.Equal(t, 1, credit.calls)
		assert.Equal(t, []notify.Kind{notify.KindCreditDenied}, rec.Kinds())
	})

	t.Run("advisory reports but creates", func(t *testing.T) {
		svc, repo, _, rec := newService(t, shared.CreditGateAdvisory, "80000", quotes)
		res, err := svc.CreateFromQuotation(context.Background(), CreateFromQuotationRequest{QuotationID: 3}, 5)
		require.NoError(t, err)
		assert.Len(t, repo.orders, 1)
		require.NotNil(t, res.Credit)
		assert.False(t, res.Credit.Allowed)
		assert.True(t, res.Credit.Overage.Equal(d("10000")))
		assert.Equal(t, []notify.Kind{notify.KindCreditDenied}, rec.Kinds())
	})

	t.Run("enforced allows within ceiling", func(t *testing.T) {
		svc, repo, _, _ := newService(t, shared.CreditGateEnforced, "20000", quotes)
		_, err := svc.CreateFromQuotation(context.Background(), CreateFromQuotationRequest{QuotationID: 3}, 5)
		require.NoError(t, err)
		assert.Len(t, repo.orders, 1)
	})
}
