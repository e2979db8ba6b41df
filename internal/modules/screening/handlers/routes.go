package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers expression and screening routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/expressions", func(r chi.Router) {
		r.Post("/compile", h.HandleCompile)
		r.Post("/evaluate", h.HandleEvaluate)
	})

	r.Route("/screen", func(r chi.Router) {
		r.Post("/", h.HandleScreen)
		r.Post("/table", h.HandleTable)
		r.Post("/average", h.HandleAverage)
	})
}
