package ar

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/concreta/concreta/internal/platform/httpx"
)

// IdempotencyHeader carries the client's retry key for payments.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages AR endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listInvoices)
	r.Post("/", h.generateInvoice)
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.showInvoice)
	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/payments", h.applyPayment)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListInvoicesRequest{}
	req.Limit, _ = strconv.Atoi(q.Get("limit"))
	req.Offset, _ = strconv.Atoi(q.Get("offset"))
	if v := q.Get("customer_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.CustomerID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		status := InvoiceStatus(v)
		req.Status = &status
	}
	items, total, err := h.service.ListInvoices(r.Context(), req)
	if err != nil {
		h.logger.Error("list invoices failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": items, "total": total})
}

func (h *Handler) generateInvoice(w http.ResponseWriter, r *http.Request) {
	var req GenerateInvoiceRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GenerateInvoice(r.Context(), req, httpx.ActorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ApplyPaymentRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.InvoiceID = id
	req.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	if req.Override != nil {
		req.Override.ActorID = httpx.ActorID(r)
	}
	res, err := h.service.ApplyPayment(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: as_of must be YYYY-MM-DD", httpx.ErrValidation))
			return
		}
		asOf = parsed
	}
	bucket, err := h.service.Aging(r.Context(), asOf)
	if err != nil {
		h.logger.Error("ar aging failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bucket)
}
