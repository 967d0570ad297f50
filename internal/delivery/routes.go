package delivery

import "github.com/go-chi/chi/v5"

// MountOrderRoutes registers rotations under /orders/{id}.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Get("/{id}/deliveries", h.listByOrder)
	r.Post("/{id}/deliveries", h.record)
}

// MountCustomerRoutes registers /customers/{id}/unbilled-deliveries.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/{id}/unbilled-deliveries", h.listUnbilled)
}

// MountRoutes registers /deliveries routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.show)
}
