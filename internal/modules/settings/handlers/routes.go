package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/meta", h.HandleGetMeta)

		r.Route("/filters", func(r chi.Router) {
			r.Get("/", h.HandleListFilters)
			r.Post("/", h.HandleSaveFilter)
			r.Put("/{id}", h.HandleSaveFilter)
			r.Delete("/{id}", h.HandleDeleteFilter)
		})

		r.Route("/indicator-groups", func(r chi.Router) {
			r.Get("/", h.HandleListGroups)
			r.Post("/", h.HandleCreateGroup)
			r.Put("/{groupID}", h.HandleRenameGroup)
			r.Delete("/{groupID}", h.HandleRemoveGroup)
			r.Post("/{groupID}/indicators", h.HandleSaveIndicator)
			r.Put("/{groupID}/indicators/{indicatorID}", h.HandleSaveIndicator)
			r.Delete("/{groupID}/indicators/{indicatorID}", h.HandleRemoveIndicator)
		})
		r.Post("/indicators/{indicatorID}/move", h.HandleMoveIndicator)

		r.Get("/followed/{stockID}", h.HandleGetFollowed)
		r.Put("/followed/{stockID}", h.HandleSetFollowed)
		r.Post("/followed/{stockID}/{indicatorID}", h.HandleFollow)

		r.Get("/favorites", h.HandleGetFavorites)
		r.Post("/favorites/{stockID}/toggle", h.HandleToggleFavorite)
	})
}
