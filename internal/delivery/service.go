package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/concreta/concreta/internal/formulas"
	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/platform/lock"
	"github.com/concreta/concreta/internal/sales/orders"
	"github.com/concreta/concreta/internal/shared"
)

// FormulaReader loads mix designs.
type FormulaReader interface {
	Get(ctx context.Context, id int64) (*formulas.Formula, error)
}

// Service provides business logic for delivery operations.
type Service struct {
	store    Store
	formulas FormulaReader
	locker   lock.Locker
	notifier notify.Notifier
	metrics  *observability.Metrics
	rules    shared.Rules
	clock    shared.Clock
	logger   *slog.Logger
}

// Deps collects the service collaborators.
type Deps struct {
	Store    Store
	Formulas FormulaReader
	Locker   lock.Locker
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	Rules    shared.Rules
	Clock    shared.Clock
	Logger   *slog.Logger
}

// NewService constructs a delivery service.
func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		formulas: d.Formulas,
		locker:   d.Locker,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		rules:    d.Rules,
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

// ============================================================================
// DELIVERY OPERATIONS
// ============================================================================

// RecordDelivery registers a rotation and debits the order's volume ledger in
// one transaction. Recording is serialized per order by a distributed lock and
// by the row lock on the order; a failed check leaves both untouched.
func (s *Service) RecordDelivery(ctx context.Context, req RecordDeliveryRequest, createdBy int64) (*RecordDeliveryResult, error) {
	if req.SalesOrderID <= 0 {
		return nil, shared.Violation(shared.ErrInvalidInput, "sales_order_id", req.SalesOrderID, "> 0")
	}
	if req.ActualCementKg.IsNegative() {
		return nil, shared.Violation(shared.ErrInvalidInput, "actual_cement_kg", req.ActualCementKg, ">= 0")
	}
	if err := shared.CheckScale("volume_m3", req.VolumeM3, 2); err != nil {
		return nil, err
	}
	if err := shared.CheckScale("actual_cement_kg", req.ActualCementKg, 2); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	deliveredAt := now
	if req.DeliveredAt != nil {
		deliveredAt = req.DeliveredAt.UTC()
	}

	var result RecordDeliveryResult
	err := s.locker.WithLock(ctx, shared.SalesOrderLockKey(req.SalesOrderID), func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			order, err := tx.LockSalesOrder(ctx, req.SalesOrderID)
			if err != nil {
				return err
			}
			updated, err := order.ApplyDelivery(req.VolumeM3, s.rules.MaxVehicleVolumeM3, now)
			if err != nil {
				return err
			}
			formula, err := s.formulas.Get(ctx, order.FormulaID)
			if err != nil {
				return fmt.Errorf("load formula: %w", err)
			}
			variance, err := ComputeCementVariance(formula.CementKgPerM3, req.VolumeM3, req.ActualCementKg, s.rules.DeliveryVarianceTolerancePct)
			if err != nil {
				return err
			}
			number, err := tx.GenerateNumber(ctx, deliveredAt)
			if err != nil {
				return fmt.Errorf("generate doc number: %w", err)
			}

			d := Delivery{
				DocNumber:           number,
				SalesOrderID:        order.ID,
				CustomerID:          order.CustomerID,
				FormulaID:           order.FormulaID,
				VolumeM3:            req.VolumeM3,
				UnitPrice:           order.UnitPrice,
				ActualCementKg:      req.ActualCementKg,
				TheoreticalCementKg: variance.TheoreticalKg,
				VariancePct:         variance.VariancePct,
				TechnicalValidated:  variance.Validated,
				PaymentStatus:       PaymentPending,
				VehicleNumber:       req.VehicleNumber,
				DriverName:          req.DriverName,
				DeliveredAt:         deliveredAt,
				CreatedBy:           createdBy,
				CreatedAt:           now,
			}
			d.ID, err = tx.InsertDelivery(ctx, d)
			if err != nil {
				return fmt.Errorf("insert delivery: %w", err)
			}
			if err := tx.SaveSalesOrder(ctx, updated); err != nil {
				return fmt.Errorf("update volume ledger: %w", err)
			}
			result = RecordDeliveryResult{Delivery: &d, Order: &updated, Variance: variance}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterRecord(ctx, result)
	return &result, nil
}

func (s *Service) afterRecord(ctx context.Context, result RecordDeliveryResult) {
	d, o := result.Delivery, result.Order
	s.metrics.DeliveryRecorded(d.TechnicalValidated, d.VariancePct.InexactFloat64())
	s.logger.Info("delivery recorded",
		slog.Int64("delivery_id", d.ID),
		slog.Int64("sales_order_id", o.ID),
		slog.String("volume_m3", d.VolumeM3.String()),
		slog.String("remaining_m3", o.Ledger.Remaining().String()),
		slog.String("variance_pct", d.VariancePct.String()),
		slog.Bool("technical_validated", d.TechnicalValidated))
	if !d.TechnicalValidated {
		s.notifier.Notify(ctx, notify.Event{
			Kind:       notify.KindVarianceFlagged,
			Reference:  d.DocNumber,
			CustomerID: d.CustomerID,
			Detail:     "cement variance " + d.VariancePct.String() + "%",
			At:         d.CreatedAt,
		})
	}
	if o.Status == orders.SalesOrderStatusCompleted {
		s.notifier.Notify(ctx, notify.Event{
			Kind:       notify.KindOrderCompleted,
			Reference:  o.DocNumber,
			CustomerID: o.CustomerID,
			At:         d.CreatedAt,
		})
	}
}

// GetDelivery retrieves a delivery.
func (s *Service) GetDelivery(ctx context.Context, id int64) (*Delivery, error) {
	return s.store.GetDelivery(ctx, id)
}

// ListBySalesOrder lists the rotations of an order.
func (s *Service) ListBySalesOrder(ctx context.Context, salesOrderID int64) ([]Delivery, error) {
	return s.store.ListBySalesOrder(ctx, salesOrderID)
}

// ListUnbilled lists deliveries awaiting an invoice.
func (s *Service) ListUnbilled(ctx context.Context, customerID int64) ([]Delivery, error) {
	return s.store.ListUnbilled(ctx, customerID)
}
