package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all financial report routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Delete("/", h.HandleClear)
		r.Post("/resolve", h.HandleResolve)
	})
}
