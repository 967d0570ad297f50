package delivery

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/concreta/concreta/internal/platform/httpx"
)

// Handler exposes delivery endpoints.
type Handler struct {
	service   *Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs a delivery HTTP handler.
func NewHandler(service *Service, v *validator.Validate, logger *slog.Logger) *Handler {
	return &Handler{service: service, validator: v, logger: logger}
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RecordDeliveryRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.SalesOrderID = orderID
	result, err := h.service.RecordDelivery(r.Context(), req, httpx.ActorID(r))
	if err != nil {
		h.logger.Warn("record delivery", slog.Int64("sales_order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) listByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListBySalesOrder(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.GetDelivery(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) listUnbilled(w http.ResponseWriter, r *http.Request) {
	customerID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListUnbilled(r.Context(), customerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": items})
}
