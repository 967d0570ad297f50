package compliance

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/concreta/concreta/internal/platform/httpx"
)

// Handler exposes the compliance check over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers /cash-check, /cash-movements and /reconciliations.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/cash-check", h.check)
	r.Post("/cash-movements", h.deposit)
	r.Get("/reconciliations/{month}", h.reconcile)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Evaluate(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Override != nil {
		req.Override.ActorID = httpx.ActorID(r)
	}
	res, err := h.service.RecordCashDeposit(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	month, err := time.Parse("2006-01", chi.URLParam(r, "month"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: month must be YYYY-MM", httpx.ErrValidation))
		return
	}
	report, err := h.service.Reconcile(r.Context(), month)
	if err != nil {
		h.logger.Error("cash reconciliation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
