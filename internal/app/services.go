package app

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/concreta/concreta/internal/ar"
	"github.com/concreta/concreta/internal/compliance"
	"github.com/concreta/concreta/internal/delivery"
	"github.com/concreta/concreta/internal/formulas"
	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/platform/cache"
	"github.com/concreta/concreta/internal/platform/lock"
	"github.com/concreta/concreta/internal/sales/customers"
	"github.com/concreta/concreta/internal/sales/orders"
	"github.com/concreta/concreta/internal/sales/quotations"
	"github.com/concreta/concreta/internal/shared"
)

// Backends carries the infrastructure shared by the API and the worker.
type Backends struct {
	Config   *Config
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	Clock    shared.Clock
	Logger   *slog.Logger
}

// Services holds the engines wired against one set of backends.
type Services struct {
	Formulas   *formulas.Registry
	Customers  *customers.Service
	Quotations *quotations.Service
	Orders     *orders.Service
	Deliveries *delivery.Service
	Invoices   *ar.Service
	Compliance *compliance.Service
}

// NewServices wires every engine. Without Redis the locks fall back to the
// in-process locker and formulas are read through without caching.
func NewServices(b Backends) (*Services, error) {
	rules, err := b.Config.Engine()
	if err != nil {
		return nil, err
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if b.Clock == nil {
		b.Clock = shared.SystemClock{}
	}

	var locker lock.Locker = lock.NewLocal()
	var formulaCache *cache.JSON
	if b.Redis != nil {
		ttl, wait := b.Config.LockTTL, b.Config.LockWait
		locker = lock.NewRedis(b.Redis, ttl, wait)
		formulaCache = cache.NewJSON(b.Redis, "formula", b.Config.FormulaTTL)
	}

	registry := formulas.NewRegistry(formulas.NewRepository(b.Pool), formulaCache, logger)
	customerService := customers.NewService(customers.NewRepository(b.Pool), logger)
	quotationService := quotations.NewService(quotations.Deps{
		Repo:      quotations.NewRepository(b.Pool),
		Customers: customerService,
		Formulas:  registry,
		Approvals: shared.NewApprovalRecorder(b.Pool, logger),
		Notifier:  b.Notifier,
		Metrics:   b.Metrics,
		Rules:     rules,
		Clock:     b.Clock,
		Logger:    logger,
	})
	orderService := orders.NewService(orders.Deps{
		Repo:     orders.NewRepository(b.Pool),
		Quotes:   quotationService,
		Credit:   customerService,
		Locker:   locker,
		Notifier: b.Notifier,
		Metrics:  b.Metrics,
		Mode:     rules.CreditGateMode,
		Clock:    b.Clock,
		Logger:   logger,
	})
	deliveryService := delivery.NewService(delivery.Deps{
		Store:    delivery.NewRepository(b.Pool),
		Formulas: registry,
		Locker:   locker,
		Notifier: b.Notifier,
		Metrics:  b.Metrics,
		Rules:    rules,
		Clock:    b.Clock,
		Logger:   logger,
	})
	complianceService := compliance.NewService(compliance.Deps{
		Repo:     compliance.NewRepository(b.Pool),
		Locker:   locker,
		Notifier: b.Notifier,
		Metrics:  b.Metrics,
		Rules:    rules,
		Clock:    b.Clock,
		Logger:   logger,
	})
	invoiceService := ar.NewService(ar.Deps{
		Store:       ar.NewRepository(b.Pool),
		Compliance:  complianceService,
		Idempotency: shared.NewIdempotencyStore(b.Pool),
		Locker:      locker,
		Notifier:    b.Notifier,
		Metrics:     b.Metrics,
		Rules:       rules,
		Clock:       b.Clock,
		Logger:      logger,
	})

	return &Services{
		Formulas:   registry,
		Customers:  customerService,
		Quotations: quotationService,
		Orders:     orderService,
		Deliveries: deliveryService,
		Invoices:   invoiceService,
		Compliance: complianceService,
	}, nil
}

// Handlers builds the HTTP handlers for the services.
func (s *Services) Handlers(params *RouterParams) {
	v := validator.New()
	logger := params.Logger
	params.FormulaHandler = formulas.NewHandler(logger, s.Formulas)
	params.CustomerHandler = customers.NewHandler(logger, s.Customers, v)
	params.QuotationHandler = quotations.NewHandler(logger, s.Quotations, v)
	params.OrderHandler = orders.NewHandler(logger, s.Orders, v)
	params.DeliveryHandler = delivery.NewHandler(s.Deliveries, v, logger)
	params.InvoiceHandler = ar.NewHandler(logger, s.Invoices, v)
	params.ComplianceHandler = compliance.NewHandler(logger, s.Compliance, v)
}
