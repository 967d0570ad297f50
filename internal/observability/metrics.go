package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the HTTP and engine Prometheus collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	quotesApproved    prometheus.Counter
	ordersCreated     prometheus.Counter
	deliveriesTotal   *prometheus.CounterVec
	cementVariance    prometheus.Histogram
	creditDenied      *prometheus.CounterVec
	invoicesIssued    prometheus.Counter
	paymentsTotal     *prometheus.CounterVec
	complianceFlagged *prometheus.CounterVec
}

// NewMetrics builds a private registry with every collector registered.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "concreta_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "concreta_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	m := &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		quotesApproved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concreta_quotes_approved_total",
			Help: "Quotes that completed the validation handshake.",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concreta_orders_created_total",
			Help: "Orders created from approved quotes.",
		}),
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concreta_deliveries_total",
			Help: "Recorded deliveries by technical validation outcome.",
		}, []string{"validated"}),
		cementVariance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "concreta_delivery_cement_variance_pct",
			Help:    "Cement variance of recorded deliveries in percent.",
			Buckets: []float64{-20, -10, -5, -2, 0, 2, 5, 10, 20},
		}),
		creditDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concreta_credit_gate_denied_total",
			Help: "Credit gate denials by gate mode.",
		}, []string{"mode"}),
		invoicesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concreta_invoices_issued_total",
			Help: "Invoices generated from deliveries.",
		}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concreta_payments_total",
			Help: "Applied payments by method and resulting invoice status.",
		}, []string{"method", "status"}),
		complianceFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concreta_cash_compliance_flagged_total",
			Help: "Cash payments over the monthly ceiling by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(requests, duration, m.quotesApproved, m.ordersCreated, m.deliveriesTotal,
		m.cementVariance, m.creditDenied, m.invoicesIssued, m.paymentsTotal, m.complianceFlagged)
	return m
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware counts requests and observes latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry so job metrics share the endpoint.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func (m *Metrics) QuoteApproved() {
	if m == nil {
		return
	}
	m.quotesApproved.Inc()
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// DeliveryRecorded counts a delivery and observes its cement variance.
func (m *Metrics) DeliveryRecorded(validated bool, variancePct float64) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(strconv.FormatBool(validated)).Inc()
	m.cementVariance.Observe(variancePct)
}

func (m *Metrics) CreditDenied(mode string) {
	if m == nil {
		return
	}
	m.creditDenied.WithLabelValues(mode).Inc()
}

func (m *Metrics) InvoiceIssued() {
	if m == nil {
		return
	}
	m.invoicesIssued.Inc()
}

func (m *Metrics) PaymentApplied(method, status string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(method, status).Inc()
}

// ComplianceFlagged counts a cash payment over the ceiling, blocked or overridden.
func (m *Metrics) ComplianceFlagged(overridden bool) {
	if m == nil {
		return
	}
	outcome := "blocked"
	if overridden {
		outcome = "overridden"
	}
	m.complianceFlagged.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
