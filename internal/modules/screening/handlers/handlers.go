// Package handlers provides HTTP handlers for expressions, screening and
// report indicator tables.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/expression"
	"github.com/aristath/valuescope/internal/modules/screening"
	"github.com/aristath/valuescope/internal/reconcile"
)

// IndicatorSource resolves and lists cached leading indicators.
type IndicatorSource interface {
	Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithLeadingIndicators], error)
	List(ctx context.Context, offset, limit int) ([]domain.StockWithLeadingIndicators, int, error)
}

// ReportSource resolves merged financial reports.
type ReportSource interface {
	Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithReports], error)
}

// SnapshotSource returns market snapshots by id.
type SnapshotSource interface {
	Snapshots(ctx context.Context, ids []string) (map[string]domain.Snapshot, error)
}

// SchemaSource returns the saved filter schemas and indicator groups.
type SchemaSource interface {
	FilterSchemas(ctx context.Context) ([]screening.FilterSchema, error)
	IndicatorGroups(ctx context.Context) ([]screening.ReportIndicatorGroup, error)
}

// Handler handles expression and screening HTTP requests
type Handler struct {
	indicators IndicatorSource
	reports    ReportSource
	snapshots  SnapshotSource
	schemas    SchemaSource
	options    expression.Options
	screener   *screening.Screener
	tabulator  *screening.Tabulator
	log        zerolog.Logger
}

// NewHandler creates a new screening handler
func NewHandler(
	indicators IndicatorSource,
	reports ReportSource,
	snapshots SnapshotSource,
	schemas SchemaSource,
	opts expression.Options,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		indicators: indicators,
		reports:    reports,
		snapshots:  snapshots,
		schemas:    schemas,
		options:    opts,
		screener:   screening.NewScreener(opts),
		tabulator:  screening.NewTabulator(opts),
		log:        log.With().Str("handler", "screening").Logger(),
	}
}

// fail maps errors to a status. Input problems are reported verbatim.
func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	var parseErr *expression.ParseError
	var precondition *reconcile.PreconditionError
	var remote *eastmoney.RemoteError
	switch {
	case errors.As(err, &parseErr), errors.Is(err, screening.ErrEmptyTitle), errors.Is(err, screening.ErrInvalidSchema):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &precondition):
		h.writeJSON(w, http.StatusPreconditionFailed, map[string]interface{}{
			"error": err.Error(),
			"ids":   precondition.IDs,
		})
	case errors.As(err, &remote):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg(message)
		h.writeError(w, http.StatusInternalServerError, message)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
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
