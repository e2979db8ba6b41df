package handlers

import (
	"net/http"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/modules/screening"
	"github.com/aristath/valuescope/internal/reconcile"
)

type screenRequest struct {
	IDs          []string                 `json:"ids"`
	Schemas      []screening.FilterSchema `json:"schemas"`
	Enabled      []string                 `json:"enabled"`
	SortBy       string                   `json:"sortBy"`
	Descending   bool                     `json:"descending"`
	ForceRefresh bool                     `json:"forceRefresh"`
}

// HandleScreen handles POST /api/screen. Without ids every stock with cached
// leading indicators is screened; without inline schemas the saved filter
// schemas are used.
func (h *Handler) HandleScreen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if !h.decode(w, r, &req) {
		return
	}

	schemas := req.Schemas
	if schemas == nil {
		saved, err := h.schemas.FilterSchemas(r.Context())
		if err != nil {
			h.fail(w, err, "Failed to load filter schemas")
			return
		}
		schemas = saved
	}
	for i := range schemas {
		if schemas[i].Program != nil {
			continue
		}
		if err := schemas[i].Compile(); err != nil {
			h.fail(w, err, "Invalid filter schema")
			return
		}
	}

	var stocks []domain.StockWithLeadingIndicators
	var failures []reconcile.Failure
	if len(req.IDs) == 0 {
		all, _, err := h.indicators.List(r.Context(), 0, 0)
		if err != nil {
			h.fail(w, err, "Failed to list leading indicators")
			return
		}
		stocks = all
	} else {
		result, err := h.indicators.Resolve(r.Context(), req.IDs, reconcile.Options{ForceRefresh: req.ForceRefresh})
		if err != nil {
			h.fail(w, err, "Failed to resolve leading indicators")
			return
		}
		stocks, failures = result.Items, result.Failures
	}

	ids := make([]string, len(stocks))
	for i, stock := range stocks {
		ids[i] = stock.ID
	}
	snapshots, err := h.snapshots.Snapshots(r.Context(), ids)
	if err != nil {
		h.fail(w, err, "Failed to load snapshots")
		return
	}

	rows := h.screener.Apply(stocks, schemas, snapshots, req.Enabled)
	if req.SortBy != "" {
		screening.Rank(rows, req.SortBy, req.Descending)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows":     rows,
		"total":    len(stocks),
		"failures": failures,
	})
}

type tableRequest struct {
	ID         string                      `json:"id"`
	GroupID    string                      `json:"groupId"`
	Indicators []screening.ReportIndicator `json:"indicators"`
	Average    bool                        `json:"average"`
}

// HandleTable handles POST /api/screen/table. It tabulates the report
// indicators of one group (all groups when groupId is empty, or the inline
// indicators) against the reports of one stock, or against the average of
// the sample stocks when average is set.
func (h *Handler) HandleTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" && !req.Average {
		h.writeError(w, http.StatusBadRequest, "id is required unless average is set")
		return
	}

	indicators := req.Indicators
	if indicators == nil {
		groups, err := h.schemas.IndicatorGroups(r.Context())
		if err != nil {
			h.fail(w, err, "Failed to load indicator groups")
			return
		}
		found := req.GroupID == ""
		for _, g := range groups {
			if req.GroupID == "" || g.ID == req.GroupID {
				indicators = append(indicators, g.Indicators...)
				found = true
			}
		}
		if !found {
			h.writeError(w, http.StatusNotFound, "Indicator group not found")
			return
		}
	}
	for i := range indicators {
		if indicators[i].Program != nil {
			continue
		}
		if err := indicators[i].Compile(); err != nil {
			h.fail(w, err, "Invalid indicator")
			return
		}
	}

	var series domain.Series
	if req.Average {
		avg, err := h.average(r, screening.SampleStockIDs)
		if err != nil {
			h.fail(w, err, "Failed to average sample reports")
			return
		}
		series = avg
	} else {
		result, err := h.reports.Resolve(r.Context(), []string{req.ID}, reconcile.Options{})
		if err != nil {
			h.fail(w, err, "Failed to resolve financial reports")
			return
		}
		if len(result.Items) == 0 {
			h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":    "No financial reports for " + req.ID,
				"failures": result.Failures,
			})
			return
		}
		series = result.Items[0].Reports
	}

	h.writeJSON(w, http.StatusOK, h.tabulator.Table(indicators, series))
}

type averageRequest struct {
	IDs []string `json:"ids"`
}

// HandleAverage handles POST /api/screen/average and returns the
// per-position mean report series of ids (the sample stocks by default).
func (h *Handler) HandleAverage(w http.ResponseWriter, r *http.Request) {
	var req averageRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	ids := req.IDs
	if len(ids) == 0 {
		ids = screening.SampleStockIDs
	}

	series, err := h.average(r, ids)
	if err != nil {
		h.fail(w, err, "Failed to average reports")
		return
	}
	h.writeJSON(w, http.StatusOK, series)
}

func (h *Handler) average(r *http.Request, ids []string) (domain.Series, error) {
	result, err := h.reports.Resolve(r.Context(), ids, reconcile.Options{})
	if err != nil {
		return nil, err
	}
	for _, f := range result.Failures {
		h.log.Warn().Err(f.Err).Str("id", f.ID).Msg("Stock left out of report average")
	}
	return screening.AverageReports(result.Items), nil
}
