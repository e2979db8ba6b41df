package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all universe routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Delete("/", h.HandleClear)
		r.Post("/sync", h.HandleSync)
		r.Get("/{id}", h.HandleGet)
	})
}
