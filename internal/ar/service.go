package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/concreta/concreta/internal/compliance"
	"github.com/concreta/concreta/internal/delivery"
	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/platform/lock"
	"github.com/concreta/concreta/internal/shared"
)

// IdempotencyModule scopes payment idempotency keys.
const IdempotencyModule = "ar.payment"

// CashCompliance is the part of the compliance service a payment needs.
type CashCompliance interface {
	Policy() compliance.Policy
	Observe(ctx context.Context, counterpartyID int64, reference string, res compliance.Result, o *compliance.Override)
}

// IdempotencyStore is satisfied by *shared.IdempotencyStore.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service handles AR business logic.
type Service struct {
	store       Store
	compliance  CashCompliance
	idempotency IdempotencyStore
	locker      lock.Locker
	notifier    notify.Notifier
	metrics     *observability.Metrics
	rules       shared.Rules
	clock       shared.Clock
	logger      *slog.Logger
}

// Deps collects the service collaborators. Idempotency may be nil.
type Deps struct {
	Store       Store
	Compliance  CashCompliance
	Idempotency IdempotencyStore
	Locker      lock.Locker
	Notifier    notify.Notifier
	Metrics     *observability.Metrics
	Rules       shared.Rules
	Clock       shared.Clock
	Logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		compliance:  d.Compliance,
		idempotency: d.Idempotency,
		locker:      d.Locker,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		rules:       d.Rules,
		clock:       d.Clock,
		logger:      d.Logger,
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

// ============================================================================
// INVOICING
// ============================================================================

// GenerateInvoice bills deliveries of one client. The deliveries are row-locked
// and marked with a conditional update, so two concurrent runs over the same
// delivery cannot both succeed.
func (s *Service) GenerateInvoice(ctx context.Context, req GenerateInvoiceRequest, createdBy int64) (*Invoice, error) {
	if len(req.DeliveryIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one delivery required", shared.ErrInvalidInput)
	}
	taxRate := s.rules.DefaultTaxRatePct
	if req.TaxRatePct != nil {
		taxRate = *req.TaxRatePct
	}
	now := s.clock.Now()

	var inv Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		deliveries, err := tx.LockDeliveries(ctx, req.DeliveryIDs)
		if err != nil {
			return fmt.Errorf("lock deliveries: %w", err)
		}
		if missing := missingID(req.DeliveryIDs, deliveries); missing != 0 {
			return fmt.Errorf("delivery %d: %w", missing, shared.ErrNotFound)
		}
		customerID, err := CommonCustomer(deliveries)
		if err != nil {
			return err
		}
		terms := InvoiceTerms{TaxRatePct: taxRate, IssuedAt: now, AcceptFlagged: req.AcceptFlagged}
		if req.PaymentTermsDays != nil {
			terms.TermsDays = *req.PaymentTermsDays
		} else {
			customer, err := tx.GetCustomer(ctx, customerID)
			if err != nil {
				return err
			}
			terms.TermsDays = customer.PaymentTermsDays
		}
		built, err := BuildInvoice(deliveries, terms)
		if err != nil {
			return err
		}

		number, err := tx.GenerateNumber(ctx, invoicePrefix, now)
		if err != nil {
			return fmt.Errorf("generate invoice number: %w", err)
		}
		built.Number = number
		built.CreatedBy = createdBy
		id, err := tx.InsertInvoice(ctx, built)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		built.ID = id

		marked, err := tx.MarkDeliveriesBilled(ctx, id, built.DeliveryIDs)
		if err != nil {
			return fmt.Errorf("mark deliveries billed: %w", err)
		}
		if marked != int64(len(built.DeliveryIDs)) {
			return fmt.Errorf("%w: a delivery was billed concurrently", shared.ErrAlreadyBilled)
		}
		built.CreatedAt = now
		built.UpdatedAt = now
		inv = built
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceIssued()
	s.logger.Info("invoice issued",
		slog.String("number", inv.Number),
		slog.Int64("customer_id", inv.CustomerID),
		slog.Int("deliveries", len(inv.DeliveryIDs)),
		slog.String("total", inv.Total.String()))
	return &inv, nil
}

func missingID(ids []int64, found []delivery.Delivery) int64 {
	have := make(map[int64]struct{}, len(found))
	for _, d := range found {
		have[d.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return id
		}
	}
	return 0
}

// GetInvoice returns an invoice.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.store.GetInvoice(ctx, id)
}

// ListInvoices returns invoices.
func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.store.ListInvoices(ctx, req)
}

// ListPayments returns the payments applied to an invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	if _, err := s.store.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, invoiceID)
}

// ============================================================================
// PAYMENTS
// ============================================================================

// ApplyPayment posts a payment under the client's lock. Invoice, client
// balance, deliveries, payment and cash movement are written in one
// transaction. A cash payment over the monthly ceiling needs an override and
// otherwise returns *compliance.FlaggedError without writing anything.
func (s *Service) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (result *PaymentResult, err error) {
	if req.InvoiceID <= 0 {
		return nil, shared.Violation(shared.ErrInvalidInput, "invoice_id", req.InvoiceID, "> 0")
	}
	if !req.Amount.IsPositive() {
		return nil, shared.Violation(shared.ErrInvalidInput, "amount", req.Amount, "> 0")
	}
	if err := shared.CheckScale("amount", req.Amount, 2); err != nil {
		return nil, err
	}
	if !req.Method.IsValid() {
		return nil, shared.Violation(shared.ErrInvalidInput, "method", req.Method, "CASH|TRANSFER|CHECK")
	}
	if req.Method == MethodCash && s.compliance == nil {
		return nil, errors.New("ar: cash compliance not configured")
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, IdempotencyModule); err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				if delErr := s.idempotency.Delete(ctx, req.IdempotencyKey); delErr != nil {
					s.logger.Warn("release idempotency key", slog.String("key", req.IdempotencyKey), slog.Any("error", delErr))
				}
			}
		}()
	}

	current, err := s.store.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	paidAt := s.clock.Now().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}

	var (
		res     PaymentResult
		checked *compliance.Result
	)
	err = s.locker.WithLock(ctx, shared.CustomerLockKey(current.CustomerID), func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			checked = nil
			inv, err := tx.LockInvoice(ctx, req.InvoiceID)
			if err != nil {
				return err
			}
			if _, err := tx.LockCustomer(ctx, inv.CustomerID); err != nil {
				return err
			}
			settlement, err := Settle(*inv, req.Amount)
			if err != nil {
				return err
			}

			payment := Payment{
				ARInvoiceID: inv.ID,
				Amount:      req.Amount,
				Method:      req.Method,
				PaidAt:      paidAt,
				Note:        req.Note,
			}
			if req.Method == MethodCash {
				from, to := compliance.MonthWindow(paidAt)
				prior, err := tx.CashMonthlyTotal(ctx, inv.CustomerID, from, to)
				if err != nil {
					return fmt.Errorf("monthly cash total: %w", err)
				}
				check := compliance.Check(prior, req.Amount, s.compliance.Policy())
				checked = &check
				if err := compliance.Authorize(check, req.Override); err != nil {
					return err
				}
				if check.PenaltyApplicable {
					payment.PenaltyAmount = check.Penalty
					payment.StampDuty = check.StampDuty
					actor := req.Override.ActorID
					payment.OverrideBy = &actor
				}
			}

			number, err := tx.GenerateNumber(ctx, paymentPrefix, paidAt)
			if err != nil {
				return fmt.Errorf("generate payment number: %w", err)
			}
			payment.Number = number
			id, err := tx.InsertPayment(ctx, payment)
			if err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
			payment.ID = id
			payment.CreatedAt = s.clock.Now()

			if err := tx.SaveSettlement(ctx, settlement.Invoice); err != nil {
				return fmt.Errorf("save invoice: %w", err)
			}
			if !settlement.CreditDelta.IsZero() {
				if err := tx.AdjustCreditUsed(ctx, inv.CustomerID, settlement.CreditDelta); err != nil {
					return fmt.Errorf("adjust credit used: %w", err)
				}
			}
			if err := tx.SetDeliveriesPaymentStatus(ctx, inv.ID, settlement.Invoice.Status.DeliveryStatus()); err != nil {
				return fmt.Errorf("update delivery payment status: %w", err)
			}
			if checked != nil {
				movement := compliance.Movement{
					CounterpartyID: inv.CustomerID,
					Direction:      compliance.DirectionReceived,
					Amount:         req.Amount,
					Source:         "invoice " + inv.Number,
					ARInvoiceID:    &inv.ID,
					DeclaredAt:     paidAt,
				}
				movement.Stamp(*checked, req.Override)
				if _, err := tx.InsertCashMovement(ctx, movement); err != nil {
					return fmt.Errorf("insert cash movement: %w", err)
				}
			}

			updated := settlement.Invoice
			res = PaymentResult{Invoice: &updated, Payment: &payment, CreditDelta: settlement.CreditDelta, Compliance: checked}
			return nil
		})
	})
	if checked != nil && checked.PenaltyApplicable {
		s.compliance.Observe(ctx, current.CustomerID, current.Number, *checked, req.Override)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentApplied(string(req.Method), string(res.Invoice.Status))
	s.logger.Info("payment applied",
		slog.String("invoice", res.Invoice.Number),
		slog.String("payment", res.Payment.Number),
		slog.String("method", string(req.Method)),
		slog.String("amount", req.Amount.String()),
		slog.String("status", string(res.Invoice.Status)),
		slog.String("credit_delta", res.CreditDelta.String()))
	return &res, nil
}

// ============================================================================
// OVERDUE & AGING
// ============================================================================

// Aging groups outstanding balances by days past due.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	invoices, err := s.store.ListUnpaid(ctx)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	return CalculateAging(invoices, asOf), nil
}

// OverdueSummary reports what RefreshOverdue changed.
type OverdueSummary struct {
	Updated      int `json:"updated"`
	NewlyOverdue int `json:"newly_overdue"`
}

func (s *Service) notifyOverdue(ctx context.Context, inv Invoice, days int, now time.Time) {
	s.notifier.Notify(ctx, notify.Event{
		Kind:       notify.KindInvoiceOverdue,
		Reference:  inv.Number,
		CustomerID: inv.CustomerID,
		Amount:     inv.Balance(),
		Detail:     fmt.Sprintf("%d days overdue", days),
		At:         now,
	})
}
