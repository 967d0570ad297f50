package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/concreta/concreta/internal/ar"
	"github.com/concreta/concreta/internal/compliance"
	"github.com/concreta/concreta/internal/delivery"
	"github.com/concreta/concreta/internal/formulas"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/platform/httpx"
	"github.com/concreta/concreta/internal/sales/customers"
	"github.com/concreta/concreta/internal/sales/orders"
	"github.com/concreta/concreta/internal/sales/quotations"
	"github.com/concreta/concreta/jobs"
)

// Pinger reports backend reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	FormulaHandler    *formulas.Handler
	CustomerHandler   *customers.Handler
	QuotationHandler  *quotations.Handler
	OrderHandler      *orders.Handler
	DeliveryHandler   *delivery.Handler
	InvoiceHandler    *ar.Handler
	ComplianceHandler *compliance.Handler
	JobHandler        *jobs.Handler
	Database          Pinger
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.Database))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.FormulaHandler != nil {
			r.Route("/formulas", params.FormulaHandler.MountRoutes)
		}
		r.Route("/customers", func(r chi.Router) {
			if params.CustomerHandler != nil {
				params.CustomerHandler.MountRoutes(r)
			}
			if params.DeliveryHandler != nil {
				params.DeliveryHandler.MountCustomerRoutes(r)
			}
		})
		if params.QuotationHandler != nil {
			r.Route("/quotations", params.QuotationHandler.MountRoutes)
		}
		r.Route("/orders", func(r chi.Router) {
			if params.OrderHandler != nil {
				params.OrderHandler.MountRoutes(r)
			}
			if params.DeliveryHandler != nil {
				params.DeliveryHandler.MountOrderRoutes(r)
			}
		})
		if params.DeliveryHandler != nil {
			r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
		}
		if params.InvoiceHandler != nil {
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		}
		if params.ComplianceHandler != nil {
			r.Route("/compliance", params.ComplianceHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" "+r.URL.Path)
	})

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
