package sales

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.listSales)
		r.Post("/", h.postSale)
		r.Get("/{id}", h.showSale)
		r.Post("/{id}/cancel", h.cancelSale)
		r.Post("/{id}/settle", h.settleSale)
	})
}
