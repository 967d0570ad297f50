package formulas

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/concreta/concreta/internal/platform/httpx"
)

// Handler exposes the formula catalog.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// MountRoutes registers formula routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.List(r.Context(), r.URL.Query().Get("all") != "1")
	if err != nil {
		h.logger.Error("list formulas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"formulas": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := h.registry.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}
