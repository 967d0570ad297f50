package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/formulas"
	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/sales/customers"
	salesshared "github.com/concreta/concreta/internal/sales/shared"
	"github.com/concreta/concreta/internal/shared"
)

// ApprovalModule tags quotation entries in the approval log.
const ApprovalModule = "sales.quotation"

// CustomerReader loads clients.
type CustomerReader interface {
	Get(ctx context.Context, id int64) (*customers.Customer, error)
}

// FormulaReader loads mix designs.
type FormulaReader interface {
	Get(ctx context.Context, id int64) (*formulas.Formula, error)
}

// ApprovalLog records and lists handshake steps.
type ApprovalLog interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

type Service struct {
	repo      Repository
	customers CustomerReader
	formulas  FormulaReader
	approvals ApprovalLog
	notifier  notify.Notifier
	metrics   *observability.Metrics
	rules     shared.Rules
	clock     shared.Clock
	logger    *slog.Logger
}

type Deps struct {
	Repo      Repository
	Customers CustomerReader
	Formulas  FormulaReader
	Approvals ApprovalLog
	Notifier  notify.Notifier
	Metrics   *observability.Metrics
	Rules     shared.Rules
	Clock     shared.Clock
	Logger    *slog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		customers: d.Customers,
		formulas:  d.Formulas,
		approvals: d.Approvals,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		rules:     d.Rules,
		clock:     d.Clock,
		logger:    d.Logger,
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

// Create prices a quote and stores it as DRAFT.
func (s *Service) Create(ctx context.Context, req CreateQuotationRequest, createdBy int64) (*Quotation, error) {
	if !req.VolumeM3.IsPositive() {
		return nil, shared.Violation(shared.ErrInvalidInput, "volume_m3", req.VolumeM3, "> 0")
	}
	if !req.UnitPrice.IsPositive() {
		return nil, shared.Violation(shared.ErrInvalidInput, "unit_price", req.UnitPrice, "> 0")
	}
	taxRate := s.rules.DefaultTaxRatePct
	if req.TaxRatePct != nil {
		taxRate = *req.TaxRatePct
	}
	if taxRate.IsNegative() {
		return nil, shared.Violation(shared.ErrInvalidInput, "tax_rate_pct", taxRate, ">= 0")
	}
	if err := shared.CheckScale("volume_m3", req.VolumeM3, 2); err != nil {
		return nil, err
	}
	if err := shared.CheckScale("unit_price", req.UnitPrice, 2); err != nil {
		return nil, err
	}
	if err := shared.CheckScale("tax_rate_pct", taxRate, 2); err != nil {
		return nil, err
	}

	if _, err := s.customers.Get(ctx, req.CustomerID); err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}
	if _, err := s.formulas.Get(ctx, req.FormulaID); err != nil {
		return nil, fmt.Errorf("verify formula: %w", err)
	}

	net, tax, total := salesshared.CalculateTotals(req.VolumeM3, req.UnitPrice, taxRate)
	quotation := Quotation{
		CustomerID:  req.CustomerID,
		FormulaID:   req.FormulaID,
		VolumeM3:    req.VolumeM3,
		UnitPrice:   req.UnitPrice,
		TaxRatePct:  taxRate,
		NetAmount:   net,
		TaxAmount:   tax,
		TotalAmount: total,
		Handshake:   NewHandshake(),
		ValidUntil:  req.ValidUntil,
		Notes:       req.Notes,
		CreatedBy:   createdBy,
	}

	var quotationID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.GenerateNumber(ctx, s.clock.Now())
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		quotation.DocNumber = number
		id, err := repo.Create(ctx, quotation)
		if err != nil {
			return fmt.Errorf("create quotation: %w", err)
		}
		quotationID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, quotationID)
}

func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	return s.repo.List(ctx, req)
}

// History returns the approval log of a quote.
func (s *Service) History(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, ApprovalModule, shared.ApprovalRef(ApprovalModule, id))
}

// ValidateTechnical runs the formula checks and records the technical sign-off.
func (s *Service) ValidateTechnical(ctx context.Context, id int64, actor int64) (*Quotation, error) {
	return s.transition(ctx, id, actor, shared.ApprovalTechnical, "", func(ctx context.Context, q *Quotation) (Handshake, error) {
		f, err := s.formulas.Get(ctx, q.FormulaID)
		if err != nil {
			return q.Handshake, fmt.Errorf("load formula: %w", err)
		}
		return ValidateTechnical(q.Handshake, *f, s.rules)
	})
}

// ValidateAdministrative approves a technically validated quote.
func (s *Service) ValidateAdministrative(ctx context.Context, id int64, actor int64) (*Quotation, error) {
	q, err := s.transition(ctx, id, actor, shared.ApprovalAdministrative, "", func(_ context.Context, q *Quotation) (Handshake, error) {
		return ValidateAdministrative(q.Handshake)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.QuoteApproved()
	s.notifier.Notify(ctx, notify.Event{
		Kind:       notify.KindQuoteApproved,
		Reference:  q.DocNumber,
		CustomerID: q.CustomerID,
		Amount:     q.TotalAmount,
		At:         s.clock.Now(),
	})
	return q, nil
}

// Reject ends a non-terminal quote.
func (s *Service) Reject(ctx context.Context, id int64, actor int64, reason string) (*Quotation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.Violation(shared.ErrInvalidInput, "reason", reason, "required")
	}
	q, err := s.transition(ctx, id, actor, shared.ApprovalReject, reason, func(_ context.Context, q *Quotation) (Handshake, error) {
		return Reject(q.Handshake)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notify.Event{
		Kind:       notify.KindQuoteRejected,
		Reference:  q.DocNumber,
		CustomerID: q.CustomerID,
		Detail:     reason,
		At:         s.clock.Now(),
	})
	return q, nil
}

type stepFunc func(ctx context.Context, q *Quotation) (Handshake, error)

func (s *Service) transition(ctx context.Context, id, actor int64, action shared.ApprovalAction, reason string, step stepFunc) (*Quotation, error) {
	now := s.clock.Now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := step(ctx, q)
		if err != nil {
			return err
		}
		t := Transition{Next: next, Actor: actor, At: now}
		if reason != "" {
			t.Reason = &reason
		}
		return repo.ApplyTransition(ctx, id, q.Handshake.Stage(), t)
	})
	if err != nil {
		return nil, err
	}

	if s.approvals != nil {
		entry := shared.ApprovalLog{
			Module:  ApprovalModule,
			RefID:   shared.ApprovalRef(ApprovalModule, id),
			ActorID: actor,
			Action:  action,
			Note:    reason,
			At:      now,
		}
		if err := s.approvals.Record(ctx, entry); err != nil {
			s.logger.Warn("record quotation approval", slog.Int64("quotation_id", id), slog.Any("error", err))
		}
	}
	s.logger.Info("quotation transition",
		slog.Int64("quotation_id", id),
		slog.String("action", string(action)),
		slog.Int64("actor_id", actor))
	return s.repo.Get(ctx, id)
}

// ProjectedAmount is the tax-inclusive exposure a quote adds to the client's credit.
func (q Quotation) ProjectedAmount() decimal.Decimal {
	return q.TotalAmount
}
