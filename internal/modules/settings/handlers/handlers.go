// Package handlers provides HTTP handlers for user settings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/expression"
	"github.com/aristath/valuescope/internal/modules/screening"
	"github.com/aristath/valuescope/internal/modules/settings"
)

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service *settings.Service
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.All(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to get settings")
		return
	}
	h.writeJSON(w, http.StatusOK, all)
}

// HandleGetMeta handles GET /api/settings/meta
func (h *Handler) HandleGetMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.MetaInfo(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to get meta info")
		return
	}
	h.writeJSON(w, http.StatusOK, meta)
}

// HandleListFilters handles GET /api/settings/filters
func (h *Handler) HandleListFilters(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.service.FilterSchemas(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to get filter schemas")
		return
	}
	h.writeJSON(w, http.StatusOK, schemas)
}

// HandleSaveFilter handles POST /api/settings/filters and PUT /api/settings/filters/{id}
func (h *Handler) HandleSaveFilter(w http.ResponseWriter, r *http.Request) {
	var schema screening.FilterSchema
	if !h.decode(w, r, &schema) {
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		schema.ID = id
	}

	saved, err := h.service.SaveFilterSchema(r.Context(), schema)
	if err != nil {
		h.fail(w, err, "Failed to save filter schema")
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

// HandleDeleteFilter handles DELETE /api/settings/filters/{id}
func (h *Handler) HandleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFilterSchema(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err, "Failed to delete filter schema")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListGroups handles GET /api/settings/indicator-groups
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.IndicatorGroups(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to get indicator groups")
		return
	}
	h.writeJSON(w, http.StatusOK, groups)
}

type groupRequest struct {
	Title string `json:"title"`
}

// HandleCreateGroup handles POST /api/settings/indicator-groups
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !h.decode(w, r, &req) {
		return
	}
	group, err := h.service.CreateIndicatorGroup(r.Context(), req.Title)
	if err != nil {
		h.fail(w, err, "Failed to create indicator group")
		return
	}
	h.writeJSON(w, http.StatusCreated, group)
}

// HandleRenameGroup handles PUT /api/settings/indicator-groups/{groupID}
func (h *Handler) HandleRenameGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RenameIndicatorGroup(r.Context(), chi.URLParam(r, "groupID"), req.Title); err != nil {
		h.fail(w, err, "Failed to rename indicator group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveGroup handles DELETE /api/settings/indicator-groups/{groupID}
func (h *Handler) HandleRemoveGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveIndicatorGroup(r.Context(), chi.URLParam(r, "groupID")); err != nil {
		h.fail(w, err, "Failed to remove indicator group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSaveIndicator handles POST and PUT on a group's indicators
func (h *Handler) HandleSaveIndicator(w http.ResponseWriter, r *http.Request) {
	var indicator screening.ReportIndicator
	if !h.decode(w, r, &indicator) {
		return
	}
	if id := chi.URLParam(r, "indicatorID"); id != "" {
		indicator.ID = id
	}

	saved, err := h.service.SaveIndicator(r.Context(), chi.URLParam(r, "groupID"), indicator)
	if err != nil {
		h.fail(w, err, "Failed to save indicator")
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

// HandleRemoveIndicator handles DELETE /api/settings/indicator-groups/{groupID}/indicators/{indicatorID}
func (h *Handler) HandleRemoveIndicator(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveIndicator(r.Context(), chi.URLParam(r, "groupID"), chi.URLParam(r, "indicatorID"))
	if err != nil {
		h.fail(w, err, "Failed to remove indicator")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	GroupID string `json:"groupId"`
	Index   *int   `json:"index"`
}

// HandleMoveIndicator handles POST /api/settings/indicators/{indicatorID}/move
func (h *Handler) HandleMoveIndicator(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	if err := h.service.MoveIndicator(r.Context(), chi.URLParam(r, "indicatorID"), req.GroupID, index); err != nil {
		h.fail(w, err, "Failed to move indicator")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetFollowed handles GET /api/settings/followed/{stockID}
func (h *Handler) HandleGetFollowed(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Followed(r.Context(), chi.URLParam(r, "stockID"))
	if err != nil {
		h.fail(w, err, "Failed to get followed indicators")
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleSetFollowed handles PUT /api/settings/followed/{stockID}
func (h *Handler) HandleSetFollowed(w http.ResponseWriter, r *http.Request) {
	var list []settings.FollowedIndicator
	if !h.decode(w, r, &list) {
		return
	}
	if err := h.service.SetFollowed(r.Context(), chi.URLParam(r, "stockID"), list); err != nil {
		h.fail(w, err, "Failed to set followed indicators")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type followRequest struct {
	Follow *bool   `json:"follow"`
	Reason *string `json:"reason"`
}

// HandleFollow handles POST /api/settings/followed/{stockID}/{indicatorID}.
// "follow" pins or unpins the indicator, "reason" updates its note.
func (h *Handler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if !h.decode(w, r, &req) {
		return
	}
	stockID := chi.URLParam(r, "stockID")
	indicatorID := chi.URLParam(r, "indicatorID")

	if req.Follow != nil {
		if err := h.service.Follow(r.Context(), stockID, indicatorID, *req.Follow); err != nil {
			h.fail(w, err, "Failed to follow indicator")
			return
		}
	}
	if req.Reason != nil {
		if err := h.service.SetFollowReason(r.Context(), stockID, indicatorID, *req.Reason); err != nil {
			h.fail(w, err, "Failed to set follow reason")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetFavorites handles GET /api/settings/favorites
func (h *Handler) HandleGetFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.Favorites(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to get favorites")
		return
	}
	h.writeJSON(w, http.StatusOK, ids)
}

// HandleToggleFavorite handles POST /api/settings/favorites/{stockID}/toggle
func (h *Handler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favorite, err := h.service.ToggleFavorite(r.Context(), chi.URLParam(r, "stockID"))
	if err != nil {
		h.fail(w, err, "Failed to toggle favorite")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps service errors to a status. Validation problems are reported
// verbatim, anything else is logged and hidden behind message.
func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	var parseErr *expression.ParseError
	switch {
	case errors.Is(err, settings.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &parseErr), errors.Is(err, screening.ErrEmptyTitle), errors.Is(err, screening.ErrInvalidSchema):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg(message)
		h.writeError(w, http.StatusInternalServerError, message)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
