package handlers

import (
	"math"
	"net/http"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/expression"
	"github.com/aristath/valuescope/internal/modules/screening"
	"github.com/aristath/valuescope/internal/reconcile"
)

// Dictionaries selectable by the evaluate endpoint.
const (
	DictionaryFilter = "filter"
	DictionaryReport = "report"
)

type compileRequest struct {
	Expression string `json:"expression"`
}

// HandleCompile handles POST /api/expressions/compile and returns the
// program JSON, or 400 with the parse error.
func (h *Handler) HandleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if !h.decode(w, r, &req) {
		return
	}
	program, err := expression.Parse(req.Expression)
	if err != nil {
		h.fail(w, err, "Failed to compile expression")
		return
	}
	h.writeJSON(w, http.StatusOK, program)
}

type evaluateRequest struct {
	Expression string           `json:"expression"`
	Dictionary string           `json:"dictionary"`
	Series     domain.Series    `json:"series"`
	Snapshot   *domain.Snapshot `json:"snapshot"`
	IDs        []string         `json:"ids"`
}

type cellResponse struct {
	Value *float64 `json:"value"`
	Text  string   `json:"text,omitempty"`
	Error string   `json:"error,omitempty"`
}

type evaluation struct {
	ID    string         `json:"id,omitempty"`
	Cells []cellResponse `json:"cells"`
}

// HandleEvaluate handles POST /api/expressions/evaluate. The expression is
// evaluated at every column of the inline series, or of each stock's
// cached series when ids are given: leading indicators for the filter
// dictionary, merged reports for the report dictionary.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	program, err := expression.Parse(req.Expression)
	if err != nil {
		h.fail(w, err, "Failed to compile expression")
		return
	}

	dictionary := expression.FilterDictionary()
	switch req.Dictionary {
	case "", DictionaryFilter:
	case DictionaryReport:
		dictionary = expression.ReportDictionary()
	default:
		h.writeError(w, http.StatusBadRequest, "Unknown dictionary "+req.Dictionary)
		return
	}
	base := expression.Context{Dictionary: dictionary, Options: h.options}

	if len(req.IDs) == 0 {
		ctx := base
		ctx.Series = req.Series
		ctx.Snapshot = req.Snapshot
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"results": []evaluation{{Cells: cells(program, ctx)}},
		})
		return
	}

	series, failures, err := h.seriesFor(r, req.Dictionary, req.IDs)
	if err != nil {
		h.fail(w, err, "Failed to load series")
		return
	}
	snapshots, err := h.snapshots.Snapshots(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, err, "Failed to load snapshots")
		return
	}

	results := make([]evaluation, 0, len(series))
	for _, id := range req.IDs {
		s, ok := series[id]
		if !ok {
			continue
		}
		ctx := base
		ctx.Series = s
		if snap, ok := snapshots[id]; ok {
			ctx.Snapshot = &snap
		}
		results = append(results, evaluation{ID: id, Cells: cells(program, ctx)})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":  results,
		"failures": failures,
	})
}

func (h *Handler) seriesFor(r *http.Request, dictionary string, ids []string) (map[string]domain.Series, []reconcile.Failure, error) {
	out := make(map[string]domain.Series, len(ids))
	if dictionary == DictionaryReport {
		result, err := h.reports.Resolve(r.Context(), ids, reconcile.Options{})
		if err != nil {
			return nil, nil, err
		}
		for _, item := range result.Items {
			out[item.ID] = item.Reports
		}
		return out, result.Failures, nil
	}

	result, err := h.indicators.Resolve(r.Context(), ids, reconcile.Options{})
	if err != nil {
		return nil, nil, err
	}
	for _, item := range result.Items {
		out[item.ID] = item.Indicators
	}
	return out, result.Failures, nil
}

func cells(program *expression.Program, ctx expression.Context) []cellResponse {
	evaluated := expression.EvaluateColumns(program, ctx)
	out := make([]cellResponse, len(evaluated))
	for i, cell := range evaluated {
		if !cell.OK() {
			out[i] = cellResponse{Error: cell.Err.Error()}
			continue
		}
		v := cell.Value
		out[i] = cellResponse{Text: screening.FormatNumber(v, screening.IndicatorUnitNone)}
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i].Value = &v
		}
	}
	return out
}
