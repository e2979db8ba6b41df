// Package handlers provides HTTP handlers for the stock universe.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/modules/universe"
)

// Handler handles universe HTTP requests
type Handler struct {
	service *universe.Service
	log     zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(service *universe.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// HandleSync handles POST /api/stocks/sync. The body is an optional
// eastmoney.StockListFilter.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var filter eastmoney.StockListFilter
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	count, err := h.service.Sync(r.Context(), filter)
	if err != nil {
		var remote *eastmoney.RemoteError
		if errors.As(err, &remote) {
			h.log.Warn().Err(err).Msg("Stock list sync failed remotely")
			h.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to sync stock list")
		h.writeError(w, http.StatusInternalServerError, "Failed to sync stock list")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// HandleList handles GET /api/stocks. Query parameters: minPe, maxPe,
// minROE, maxROE, search, offset, limit.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := universe.ListFilter{
		MinPE:  parseFloat(q.Get("minPe")),
		MaxPE:  parseFloat(q.Get("maxPe")),
		MinROE: parseFloat(q.Get("minROE")),
		MaxROE: parseFloat(q.Get("maxROE")),
		Search: q.Get("search"),
	}

	stocks, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stocks")
		h.writeError(w, http.StatusInternalServerError, "Failed to list stocks")
		return
	}

	total := len(stocks)
	offset := min(max(parseInt(q.Get("offset")), 0), total)
	end := total
	if limit := parseInt(q.Get("limit")); limit > 0 {
		end = min(offset+limit, total)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": stocks[offset:end],
		"total": total,
	})
}

// HandleGet handles GET /api/stocks/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	infos, err := h.service.GetMany(r.Context(), []string{id})
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get stock")
		h.writeError(w, http.StatusInternalServerError, "Failed to get stock")
		return
	}
	info, ok := infos[id]
	if !ok {
		h.writeError(w, http.StatusNotFound, "Stock not found")
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandleClear handles DELETE /api/stocks
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear stocks")
		h.writeError(w, http.StatusInternalServerError, "Failed to clear stocks")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
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
