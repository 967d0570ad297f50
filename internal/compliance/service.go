package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/platform/lock"
	"github.com/concreta/concreta/internal/shared"
)

// Service applies the cash ceiling to live movements and reconciles past months.
type Service struct {
	repo     Repository
	locker   lock.Locker
	notifier notify.Notifier
	metrics  *observability.Metrics
	policy   Policy
	clock    shared.Clock
	logger   *slog.Logger
}

// Deps collects the service collaborators.
type Deps struct {
	Repo     Repository
	Locker   lock.Locker
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	Rules    shared.Rules
	Clock    shared.Clock
	Logger   *slog.Logger
}

// NewService constructs the compliance service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:     d.Repo,
		locker:   d.Locker,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		policy:   PolicyFromRules(d.Rules),
		clock:    d.Clock,
		logger:   d.Logger,
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.notifier == nil {
		s.notifier = notify.Noop{}
	}
	if s.clock == nil {
		s.clock = shared.SystemClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Policy returns the thresholds in force.
func (s *Service) Policy() Policy {
	return s.policy
}

// LockKey is the per-counterparty key shared with invoice payments so cash
// totals are never read and written concurrently.
func LockKey(counterpartyID int64, dir Direction) string {
	if dir == DirectionPaid {
		return shared.SupplierLockKey(counterpartyID)
	}
	return shared.CustomerLockKey(counterpartyID)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.Violation(shared.ErrInvalidInput, "amount", amount, "> 0")
	}
	return shared.CheckScale("amount", amount, 2)
}

// Evaluate runs the check for a prospective movement without recording it.
func (s *Service) Evaluate(ctx context.Context, req CheckRequest) (Result, error) {
	if req.CounterpartyID <= 0 {
		return Result{}, shared.Violation(shared.ErrInvalidInput, "counterparty_id", req.CounterpartyID, "> 0")
	}
	if !req.Direction.IsValid() {
		return Result{}, shared.Violation(shared.ErrInvalidInput, "direction", req.Direction, "RECEIVED|PAID")
	}
	if err := validateAmount(req.Amount); err != nil {
		return Result{}, err
	}
	at := s.clock.Now().UTC()
	if req.At != nil {
		at = req.At.UTC()
	}
	from, to := MonthWindow(at)
	prior, err := s.repo.MonthlyTotal(ctx, req.CounterpartyID, req.Direction, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("monthly cash total: %w", err)
	}
	return Check(prior, req.Amount, s.policy), nil
}

// RecordCashDeposit stores a cash movement that is not an invoice payment, such
// as a cash payment to a supplier. A flagged movement needs a valid override.
func (s *Service) RecordCashDeposit(ctx context.Context, req DepositRequest) (*DepositResult, error) {
	if req.CounterpartyID <= 0 {
		return nil, shared.Violation(shared.ErrInvalidInput, "counterparty_id", req.CounterpartyID, "> 0")
	}
	if !req.Direction.IsValid() {
		return nil, shared.Violation(shared.ErrInvalidInput, "direction", req.Direction, "RECEIVED|PAID")
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Source == "" {
		return nil, fmt.Errorf("%w: source required", shared.ErrInvalidInput)
	}
	at := s.clock.Now().UTC()
	if req.DeclaredAt != nil {
		at = req.DeclaredAt.UTC()
	}

	var (
		res   Result
		saved Movement
	)
	err := s.locker.WithLock(ctx, LockKey(req.CounterpartyID, req.Direction), func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			from, to := MonthWindow(at)
			prior, err := tx.MonthlyTotal(ctx, req.CounterpartyID, req.Direction, from, to)
			if err != nil {
				return fmt.Errorf("monthly cash total: %w", err)
			}
			res = Check(prior, req.Amount, s.policy)
			if err := Authorize(res, req.Override); err != nil {
				return err
			}
			m := Movement{
				CounterpartyID: req.CounterpartyID,
				Direction:      req.Direction,
				Amount:         req.Amount,
				Source:         req.Source,
				DeclaredAt:     at,
			}
			m.Stamp(res, req.Override)
			id, err := tx.Insert(ctx, m)
			if err != nil {
				return fmt.Errorf("insert cash movement: %w", err)
			}
			m.ID = id
			saved = m
			return nil
		})
	})
	if res.PenaltyApplicable {
		s.Observe(ctx, req.CounterpartyID, req.Source, res, req.Override)
	}
	if err != nil {
		return nil, err
	}
	return &DepositResult{Movement: &saved, Check: res}, nil
}

// Observe records metrics and notifications for a flagged check. Callers
// invoke it whether or not the movement went through.
func (s *Service) Observe(ctx context.Context, counterpartyID int64, reference string, res Result, o *Override) {
	if !res.PenaltyApplicable {
		return
	}
	overridden := o.Valid()
	s.metrics.ComplianceFlagged(overridden)
	kind := notify.KindComplianceFlagged
	attrs := []any{
		slog.Int64("counterparty_id", counterpartyID),
		slog.String("reference", reference),
		slog.String("new_total", res.NewTotal.String()),
		slog.String("penalty", res.Penalty.String()),
		slog.String("stamp_duty", res.StampDuty.String()),
	}
	if overridden {
		kind = notify.KindComplianceOverride
		attrs = append(attrs, slog.Int64("override_by", o.ActorID))
		s.logger.Warn("cash ceiling exceeded, override acknowledged", attrs...)
	} else {
		s.logger.Warn("cash ceiling exceeded, movement blocked", attrs...)
	}
	s.notifier.Notify(ctx, notify.Event{
		Kind:       kind,
		Reference:  reference,
		CustomerID: counterpartyID,
		Amount:     res.TotalPenaltyCost,
		Detail:     fmt.Sprintf("excess %s over ceiling %s", res.Excess.StringFixed(2), res.Ceiling.StringFixed(2)),
		At:         s.clock.Now(),
	})
}

// Reconcile replays every movement of the month through Check in declaration
// order and reports movements whose stored penalty disagrees.
func (s *Service) Reconcile(ctx context.Context, month time.Time) (*ReconcileReport, error) {
	from, to := MonthWindow(month)
	movements, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list cash movements: %w", err)
	}
	report := &ReconcileReport{Month: from.Format("2006-01"), Totals: []CounterpartyTotal{}, Discrepancies: []Discrepancy{}}

	var current *CounterpartyTotal
	for _, m := range movements {
		if current == nil || current.CounterpartyID != m.CounterpartyID || current.Direction != m.Direction {
			report.Totals = append(report.Totals, CounterpartyTotal{CounterpartyID: m.CounterpartyID, Direction: m.Direction})
			current = &report.Totals[len(report.Totals)-1]
		}
		res := Check(current.Total, m.Amount, s.policy)
		current.Total = res.NewTotal
		current.Movements++
		current.Penalties = current.Penalties.Add(m.PenaltyAmount)
		if res.NewTotal.GreaterThan(s.policy.MonthlyCeiling) {
			current.Excess = res.NewTotal.Sub(s.policy.MonthlyCeiling)
		}

		unacknowledged := res.PenaltyApplicable && m.OverrideBy == nil
		if !res.Penalty.Equal(m.PenaltyAmount) || unacknowledged {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				MovementID:      m.ID,
				CounterpartyID:  m.CounterpartyID,
				Direction:       m.Direction,
				StoredPenalty:   m.PenaltyAmount,
				ExpectedPenalty: res.Penalty,
				Unacknowledged:  unacknowledged,
			})
		}
	}
	if len(report.Discrepancies) > 0 {
		s.logger.Warn("cash reconciliation found discrepancies",
			slog.String("month", report.Month),
			slog.Int("count", len(report.Discrepancies)))
	}
	return report, nil
}
