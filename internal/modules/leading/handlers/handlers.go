// Package handlers provides HTTP handlers for leading indicators and their
// background sync.
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
	"github.com/aristath/valuescope/internal/modules/leading"
	"github.com/aristath/valuescope/internal/modules/universe"
	"github.com/aristath/valuescope/internal/reconcile"
)

// Service is the part of leading.Service the handlers use.
type Service interface {
	Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithLeadingIndicators], error)
	List(ctx context.Context, offset, limit int) ([]domain.StockWithLeadingIndicators, int, error)
	Sync(ctx context.Context, opts leading.SyncOptions) (*leading.SyncResult, error)
	Stop() bool
	Running() bool
	Status(ctx context.Context) (leading.SyncStatus, error)
	Clear(ctx context.Context) error
}

// Handler handles leading indicator HTTP requests
type Handler struct {
	service Service
	log     zerolog.Logger
}

// NewHandler creates a new leading indicator handler
func NewHandler(service Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "leading").Logger(),
	}
}

// ResolveRequest is the body of the resolve endpoints.
type ResolveRequest struct {
	IDs          []string `json:"ids"`
	ForceRefresh bool     `json:"forceRefresh"`
	WindowYears  int      `json:"windowYears"`
}

// HandleResolve handles POST /api/indicators/resolve
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Resolve(r.Context(), req.IDs, reconcile.Options{
		ForceRefresh: req.ForceRefresh,
		WindowYears:  req.WindowYears,
	})
	if err != nil {
		h.fail(w, err, "Failed to resolve leading indicators")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleList handles GET /api/indicators?offset=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, total, err := h.service.List(r.Context(), offset, limit)
	if err != nil {
		h.fail(w, err, "Failed to list leading indicators")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// HandleSync handles POST /api/indicators/sync. The sync runs in the
// background and the response is 202 with the status; with ?wait=true it
// runs inline and the response carries the leading.SyncResult.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var opts leading.SyncOptions
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	if r.URL.Query().Get("wait") == "true" {
		result, err := h.service.Sync(r.Context(), opts)
		if err != nil {
			h.fail(w, err, "Leading indicator sync failed")
			return
		}
		h.writeJSON(w, http.StatusOK, result)
		return
	}

	if h.service.Running() {
		h.writeError(w, http.StatusConflict, leading.ErrSyncInProgress.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		result, err := h.service.Sync(ctx, opts)
		if err != nil {
			h.log.Error().Err(err).Msg("Background leading indicator sync failed")
			return
		}
		h.log.Info().
			Int("fetched", result.Fetched).
			Int("failed", len(result.Failed)).
			Bool("stopped", result.Stopped).
			Msg("Background leading indicator sync finished")
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]bool{"started": true})
}

// HandleStop handles POST /api/indicators/sync/stop
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"stopping": h.service.Stop()})
}

// HandleStatus handles GET /api/indicators/sync
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to get sync status")
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// HandleClear handles DELETE /api/indicators
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.fail(w, err, "Failed to clear leading indicators")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	var precondition *reconcile.PreconditionError
	var remote *eastmoney.RemoteError
	switch {
	case errors.As(err, &precondition):
		h.writeJSON(w, http.StatusPreconditionFailed, map[string]interface{}{
			"error": err.Error(),
			"ids":   precondition.IDs,
		})
	case errors.Is(err, leading.ErrSyncInProgress), errors.Is(err, universe.ErrEmptyUniverse):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, leading.ErrInvalidPage):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &remote):
		h.writeError(w, http.StatusBadGateway, err.Error())
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
