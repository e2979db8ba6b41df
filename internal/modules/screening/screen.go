package screening

import (
	"math"
	"sort"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/expression"
)

// Row is one stock that passed screening, with the value of every schema.
// A schema without a result has no entry in Values.
type Row struct {
	ID           string             `json:"id"`
	Code         string             `json:"code"`
	Name         string             `json:"name"`
	LatestYear   int                `json:"latestYear,omitempty"`
	EarliestYear int                `json:"earliestYear,omitempty"`
	Snapshot     *domain.Snapshot   `json:"snapshot,omitempty"`
	Values       map[string]float64 `json:"values"`
}

// Value returns the value of schemaID, or 0 when there is none.
func (r Row) Value(schemaID string) float64 {
	return r.Values[schemaID]
}

// Screener evaluates filter schemas against leading indicators.
type Screener struct {
	dictionary expression.Dictionary
	options    expression.Options
}

// NewScreener creates a screener using the filter dictionary.
func NewScreener(opts expression.Options) *Screener {
	return &Screener{dictionary: expression.FilterDictionary(), options: opts}
}

// Apply evaluates every schema against the newest record of each stock and
// keeps the stocks for which every enabled schema yields a finite value
// within its bounds. enabled lists the schema ids to filter by; nil enables
// all of them. Rows keep the order of stocks.
func (s *Screener) Apply(stocks []domain.StockWithLeadingIndicators, schemas []FilterSchema, snapshots map[string]domain.Snapshot, enabled []string) []Row {
	on := make(map[string]bool, len(schemas))
	if enabled == nil {
		for _, schema := range schemas {
			on[schema.ID] = true
		}
	} else {
		for _, id := range enabled {
			on[id] = true
		}
	}

	rows := make([]Row, 0, len(stocks))
	for _, stock := range stocks {
		ctx := expression.Context{
			Series:     stock.Indicators,
			Dictionary: s.dictionary,
			Options:    s.options,
		}
		if snap, ok := snapshots[stock.ID]; ok {
			ctx.Snapshot = &snap
		}

		row := Row{
			ID:       stock.ID,
			Code:     stock.Code,
			Name:     stock.Name,
			Snapshot: ctx.Snapshot,
			Values:   make(map[string]float64, len(schemas)),
		}
		if n := len(stock.Indicators); n > 0 {
			row.LatestYear = stock.Indicators[0].Year()
			row.EarliestYear = stock.Indicators[n-1].Year()
		}

		keep := true
		for _, schema := range schemas {
			v, err := expression.Evaluate(schema.Program, ctx)
			ok := err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
			if ok {
				row.Values[schema.ID] = v
			}
			if on[schema.ID] && (!ok || !schema.Limit.Contains(v, schema.LimitUnit)) {
				keep = false
			}
		}

		if keep {
			rows = append(rows, row)
		}
	}
	return rows
}

// Rank sorts rows by the value of schemaID. Rows without a value sort as 0.
// Equal values keep their relative order.
func Rank(rows []Row, schemaID string, descending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Value(schemaID), rows[j].Value(schemaID)
		if descending {
			return a > b
		}
		return a < b
	})
}
