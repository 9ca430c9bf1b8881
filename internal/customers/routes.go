package customers

import "github.com/go-chi/chi/v5"

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/search", h.search)
		r.Get("/{id}", h.show)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.deactivate)
		r.Get("/{id}/credit", h.credit)
		if h.payments != nil {
			r.Get("/{id}/payments", h.listPayments)
		}
	})
}
