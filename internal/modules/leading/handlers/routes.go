package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all leading indicator routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/indicators", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Delete("/", h.HandleClear)
		r.Post("/resolve", h.HandleResolve)
		r.Get("/sync", h.HandleStatus)
		r.Post("/sync", h.HandleSync)
		r.Post("/sync/stop", h.HandleStop)
	})
}
