package compliance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	movements []Movement
	nextID    int64
	inTx      bool
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryRepo{movements: append([]Movement(nil), m.movements...), nextID: m.nextID, inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.movements = tx.movements
	m.nextID = tx.nextID
	return nil
}

func (m *memoryRepo) MonthlyTotal(ctx context.Context, counterpartyID int64, dir Direction, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, mv := range m.movements {
		if mv.CounterpartyID == counterpartyID && mv.Direction == dir && !mv.DeclaredAt.Before(from) && mv.DeclaredAt.Before(to) {
			total = total.Add(mv.Amount)
		}
	}
	return total, nil
}

func (m *memoryRepo) Insert(ctx context.Context, mv Movement) (int64, error) {
	m.nextID++
	mv.ID = m.nextID
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memoryRepo) ListBetween(ctx context.Context, from, to time.Time) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if !mv.DeclaredAt.Before(from) && mv.DeclaredAt.Before(to) {
			out = append(out, mv)
		}
	}
	return out, nil
}

var now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func newTestService(repo Repository, rec *notify.Recorder) *Service {
	return NewService(Deps{
		Repo:     repo,
		Notifier: rec,
		Rules:    shared.DefaultRules(),
		Clock:    shared.FixedClock{At: now},
	})
}

func deposit(amount string, o *Override) DepositRequest {
	return DepositRequest{CounterpartyID: 9, Direction: DirectionPaid, Amount: dec(amount), Source: "supplier cash", Override: o}
}

func TestRecordCashDepositFlaggedLeavesNoTrace(t *testing.T) {
	repo := &memoryRepo{}
	rec := &notify.Recorder{}
	svc := newTestService(repo, rec)
	ctx := context.Background()

	_, err := svc.RecordCashDeposit(ctx, deposit("45000", nil))
	require.NoError(t, err)

	_, err = svc.RecordCashDeposit(ctx, deposit("10000", nil))
	var fe *FlaggedError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Result.Penalty.Equal(dec("300")))
	assert.Len(t, repo.movements, 1)
	assert.Equal(t, []notify.Kind{notify.KindComplianceFlagged}, rec.Kinds())

	res, err := svc.RecordCashDeposit(ctx, deposit("10000", &Override{ActorID: 3, Acknowledged: true}))
	require.NoError(t, err)
	assert.True(t, res.Check.PenaltyApplicable)
	assert.True(t, res.Movement.PenaltyAmount.Equal(dec("300")))
	assert.True(t, res.Movement.StampDuty.Equal(dec("25")))
	require.NotNil(t, res.Movement.OverrideBy)
	assert.Equal(t, int64(3), *res.Movement.OverrideBy)
	assert.Len(t, repo.movements, 2)
	assert.Equal(t, notify.KindComplianceOverride, rec.Kinds()[1])
}

func TestRecordCashDepositValidation(t *testing.T) {
	svc := newTestService(&memoryRepo{}, &notify.Recorder{})
	ctx := context.Background()

	_, err := svc.RecordCashDeposit(ctx, deposit("0", nil))
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	req := deposit("100", nil)
	req.Direction = "SIDEWAYS"
	_, err = svc.RecordCashDeposit(ctx, req)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	req = deposit("100", nil)
	req.Source = ""
	_, err = svc.RecordCashDeposit(ctx, req)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestEvaluateUsesCalendarMonth(t *testing.T) {
	repo := &memoryRepo{}
	repo.movements = []Movement{
		{ID: 1, CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("45000"), DeclaredAt: now.AddDate(0, -1, 0)},
		{ID: 2, CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("30000"), DeclaredAt: now.Add(-time.Hour)},
		{ID: 3, CounterpartyID: 9, Direction: DirectionReceived, Amount: dec("30000"), DeclaredAt: now.Add(-time.Hour)},
	}
	svc := newTestService(repo, &notify.Recorder{})

	res, err := svc.Evaluate(context.Background(), CheckRequest{CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("15000")})
	require.NoError(t, err)
	assert.True(t, res.PriorTotal.Equal(dec("30000")))
	assert.False(t, res.PenaltyApplicable)
}

func TestOffsetTimestampsUseTheUTCMonth(t *testing.T) {
	repo := &memoryRepo{movements: []Movement{
		{ID: 1, CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("45000"), DeclaredAt: time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)},
	}, nextID: 1}
	svc := newTestService(repo, &notify.Recorder{})
	ctx := context.Background()
	lateOctoberLocal := time.Date(2026, 10, 31, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*60*60))

	res, err := svc.Evaluate(ctx, CheckRequest{CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("10000"), At: &lateOctoberLocal})
	require.NoError(t, err)
	assert.True(t, res.PriorTotal.IsZero())
	assert.False(t, res.PenaltyApplicable)

	req := deposit("10000", nil)
	req.DeclaredAt = &lateOctoberLocal
	saved, err := svc.RecordCashDeposit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, saved.Movement.DeclaredAt.Location())
	assert.True(t, saved.Movement.DeclaredAt.Equal(lateOctoberLocal))

	report, err := svc.Reconcile(ctx, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, report.Totals, 1)
	assert.True(t, report.Totals[0].Total.Equal(dec("10000")))
	assert.Empty(t, report.Discrepancies)
}

func TestRecordCashDepositRejectsSubCentAmounts(t *testing.T) {
	svc := newTestService(&memoryRepo{}, &notify.Recorder{})
	_, err := svc.RecordCashDeposit(context.Background(), deposit("100.005", nil))
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestReconcileReportsDiscrepancies(t *testing.T) {
	over := int64(4)
	repo := &memoryRepo{movements: []Movement{
		{ID: 1, CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("45000"), DeclaredAt: now.Add(-48 * time.Hour)},
		{ID: 2, CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("10000"), DeclaredAt: now.Add(-24 * time.Hour),
			PenaltyAmount: dec("300"), StampDuty: dec("25"), OverrideBy: &over},
		{ID: 3, CounterpartyID: 9, Direction: DirectionPaid, Amount: dec("1000"), DeclaredAt: now},
		{ID: 4, CounterpartyID: 12, Direction: DirectionReceived, Amount: dec("5000"), DeclaredAt: now},
	}}
	svc := newTestService(repo, &notify.Recorder{})

	report, err := svc.Reconcile(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", report.Month)
	require.Len(t, report.Totals, 2)
	assert.True(t, report.Totals[0].Total.Equal(dec("56000")))
	assert.True(t, report.Totals[0].Excess.Equal(dec("6000")))
	assert.Equal(t, 3, report.Totals[0].Movements)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, int64(3), d.MovementID)
	assert.True(t, d.ExpectedPenalty.Equal(dec("360")))
	assert.True(t, d.StoredPenalty.IsZero())
	assert.True(t, d.Unacknowledged)
}
