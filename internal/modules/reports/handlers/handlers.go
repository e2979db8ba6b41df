// Package handlers provides HTTP handlers for merged financial reports.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/reconcile"
)

// Service is the part of reports.Service the handlers use.
type Service interface {
	Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithReports], error)
	List(ctx context.Context, offset, limit int) ([]domain.StockWithReports, int, error)
	Clear(ctx context.Context) error
}

// Handler handles financial report HTTP requests
type Handler struct {
	service Service
	log     zerolog.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "reports").Logger(),
	}
}

type resolveRequest struct {
	IDs          []string `json:"ids"`
	ForceRefresh bool     `json:"forceRefresh"`
	WindowYears  int      `json:"windowYears"`
}

// HandleResolve handles POST /api/reports/resolve
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.WindowYears < 0 {
		h.writeError(w, http.StatusBadRequest, "windowYears must not be negative")
		return
	}

	result, err := h.service.Resolve(r.Context(), req.IDs, reconcile.Options{
		ForceRefresh: req.ForceRefresh,
		WindowYears:  req.WindowYears,
	})
	if err != nil {
		var precondition *reconcile.PreconditionError
		var remote *eastmoney.RemoteError
		switch {
		case errors.As(err, &precondition):
			h.writeJSON(w, http.StatusPreconditionFailed, map[string]interface{}{
				"error": err.Error(),
				"ids":   precondition.IDs,
			})
		case errors.As(err, &remote):
			h.writeError(w, http.StatusBadGateway, err.Error())
		default:
			h.log.Error().Err(err).Msg("Failed to resolve financial reports")
			h.writeError(w, http.StatusInternalServerError, "Failed to resolve financial reports")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleList handles GET /api/reports?offset=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, total, err := h.service.List(r.Context(), offset, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list financial reports")
		h.writeError(w, http.StatusInternalServerError, "Failed to list financial reports")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// HandleClear handles DELETE /api/reports
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear financial reports")
		h.writeError(w, http.StatusInternalServerError, "Failed to clear financial reports")
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
