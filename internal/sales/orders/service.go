package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/platform/lock"
	"github.com/concreta/concreta/internal/sales/customers"
	"github.com/concreta/concreta/internal/sales/quotations"
	"github.com/concreta/concreta/internal/shared"
)

// QuotationReader loads quotes.
type QuotationReader interface {
	Get(ctx context.Context, id int64) (*quotations.Quotation, error)
}

// CreditChecker evaluates the client credit gate.
type CreditChecker interface {
	CheckCredit(ctx context.Context, customerID int64, projected decimal.Decimal) (customers.CreditDecision, error)
}

type Service struct {
	repo     Repository
	quotes   QuotationReader
	credit   CreditChecker
	locker   lock.Locker
	notifier notify.Notifier
	metrics  *observability.Metrics
	mode     shared.CreditGateMode
	clock    shared.Clock
	logger   *slog.Logger
}

type Deps struct {
	Repo     Repository
	Quotes   QuotationReader
	Credit   CreditChecker
	Locker   lock.Locker
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	Mode     shared.CreditGateMode
	Clock    shared.Clock
	Logger   *slog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:     d.Repo,
		quotes:   d.Quotes,
		credit:   d.Credit,
		locker:   d.Locker,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		mode:     d.Mode,
		clock:    d.Clock,
		logger:   d.Logger,
	}
	if !s.mode.IsValid() {
		s.mode = shared.CreditGateAdvisory
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

// CreateFromQuotation materializes an approved quote into an order. The price
// is frozen from the quote. In enforced mode the credit gate runs under the
// client lock and a denial aborts; in advisory mode it is reported only.
func (s *Service) CreateFromQuotation(ctx context.Context, req CreateFromQuotationRequest, createdBy int64) (*CreateResult, error) {
	q, err := s.quotes.Get(ctx, req.QuotationID)
	if err != nil {
		return nil, fmt.Errorf("load quotation: %w", err)
	}
	if q.Status() != quotations.StageApproved {
		return nil, shared.Violation(shared.ErrQuoteNotApproved, "quotation_id", q.ID, "status "+string(q.Status()))
	}

	var result *CreateResult
	err = s.locker.WithLock(ctx, shared.CustomerLockKey(q.CustomerID), func(ctx context.Context) error {
		decision, err := s.evaluateCredit(ctx, q)
		if err != nil {
			return err
		}
		order, err := s.create(ctx, q, req, createdBy)
		if err != nil {
			return err
		}
		result = &CreateResult{Order: order, Credit: decision}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderCreated()
	s.logger.Info("sales order created",
		slog.Int64("sales_order_id", result.Order.ID),
		slog.Int64("quotation_id", q.ID),
		slog.String("ordered_m3", result.Order.Ledger.Ordered().String()))
	return result, nil
}

func (s *Service) evaluateCredit(ctx context.Context, q *quotations.Quotation) (*customers.CreditDecision, error) {
	if s.credit == nil {
		return nil, nil
	}
	decision, err := s.credit.CheckCredit(ctx, q.CustomerID, q.ProjectedAmount())
	if err != nil {
		return nil, fmt.Errorf("credit gate: %w", err)
	}
	if decision.Allowed {
		return &decision, nil
	}
	s.metrics.CreditDenied(string(s.mode))
	s.notifier.Notify(ctx, notify.Event{
		Kind:       notify.KindCreditDenied,
		Reference:  q.DocNumber,
		CustomerID: q.CustomerID,
		Amount:     decision.Overage,
		Detail:     "overage on " + string(s.mode) + " credit gate",
		At:         s.clock.Now(),
	})
	if s.mode == shared.CreditGateEnforced {
		return nil, decision.Err()
	}
	s.logger.Warn("credit gate denied in advisory mode",
		slog.Int64("customer_id", q.CustomerID),
		slog.Int64("quotation_id", q.ID),
		slog.String("overage", decision.Overage.StringFixed(2)))
	return &decision, nil
}

func (s *Service) create(ctx context.Context, q *quotations.Quotation, req CreateFromQuotationRequest, createdBy int64) (*SalesOrder, error) {
	ledger, err := NewLedger(q.VolumeM3)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	order := SalesOrder{
		CustomerID:      q.CustomerID,
		FormulaID:       q.FormulaID,
		QuotationID:     q.ID,
		UnitPrice:       q.UnitPrice,
		TaxRatePct:      q.TaxRatePct,
		Status:          SalesOrderStatusActive,
		Ledger:          ledger,
		DeliveryAddress: req.DeliveryAddress,
		CreatedBy:       createdBy,
	}

	var orderID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.GetByQuotation(ctx, q.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("check quotation conversion: %w", err)
		}
		if existing != nil {
			return ErrQuoteAlreadyConverted
		}
		number, err := repo.GenerateNumber(ctx, now)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		order.DocNumber = number
		orderID, err = repo.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create sales order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, orderID)
}

func (s *Service) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListSalesOrdersRequest) ([]SalesOrder, int, error) {
	return s.repo.List(ctx, req)
}
