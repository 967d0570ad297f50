package quotations

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Get("/{id}/approvals", h.History)
	r.Post("/{id}/technical", h.ValidateTechnical)
	r.Post("/{id}/administrative", h.ValidateAdministrative)
	r.Post("/{id}/reject", h.Reject)
}
