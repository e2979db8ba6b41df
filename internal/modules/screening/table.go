package screening

import (
	"math"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/expression"
	"github.com/aristath/valuescope/pkg/formulas"
)

// SampleStockIDs are the stocks averaged to preview report indicators.
var SampleStockIDs = []string{"600887.SH", "300750.SZ", "600519.SH"}

// TableCell is one evaluated report column. Value is nil when the
// expression has no finite result for that year.
type TableCell struct {
	Value *float64 `json:"value"`
	Text  string   `json:"text"`
}

// TableRow holds the per-year values of one indicator.
type TableRow struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Unit  IndicatorUnit `json:"unit,omitempty"`
	Cells []TableCell   `json:"cells"`
}

// IndicatorTable is a grid of indicators by report year, newest first.
type IndicatorTable struct {
	Years []int      `json:"years"`
	Rows  []TableRow `json:"rows"`
}

// Tabulator evaluates report indicators column by column.
type Tabulator struct {
	dictionary expression.Dictionary
	options    expression.Options
}

// NewTabulator creates a tabulator using the report dictionary.
func NewTabulator(opts expression.Options) *Tabulator {
	return &Tabulator{dictionary: expression.ReportDictionary(), options: opts}
}

// Table evaluates every indicator against every report of series.
func (t *Tabulator) Table(indicators []ReportIndicator, series domain.Series) IndicatorTable {
	table := IndicatorTable{
		Years: make([]int, len(series)),
		Rows:  make([]TableRow, 0, len(indicators)),
	}
	for i, rec := range series {
		table.Years[i] = rec.Year()
	}

	ctx := expression.Context{Series: series, Dictionary: t.dictionary, Options: t.options}
	for _, ind := range indicators {
		row := TableRow{ID: ind.ID, Title: ind.Title, Unit: ind.Unit, Cells: make([]TableCell, len(series))}
		for i, cell := range expression.EvaluateColumns(ind.Program, ctx) {
			if !cell.OK() {
				row.Cells[i] = TableCell{Text: FormatNumber(math.NaN(), ind.Unit)}
				continue
			}
			v := cell.Value
			row.Cells[i] = TableCell{Text: FormatNumber(v, ind.Unit)}
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				row.Cells[i].Value = &v
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// AverageReports averages report values position by position across
// entities. The result is as long as the first entity's series; a value
// missing from an entity counts as 0 and a zero average is left out.
func AverageReports(entities []domain.StockWithReports) domain.Series {
	if len(entities) == 0 {
		return domain.Series{}
	}

	var all domain.Series
	for _, e := range entities {
		all = append(all, e.Reports...)
	}
	keys := all.Keys()

	out := make(domain.Series, len(entities[0].Reports))
	values := make([]float64, len(entities))
	for i := range out {
		avg := domain.Record{}
		for _, key := range keys {
			for j, e := range entities {
				values[j] = 0
				if i < len(e.Reports) {
					if v, ok := e.Reports[i].Number(key); ok {
						values[j] = v
					}
				}
			}
			if mean := formulas.Mean(values); mean != 0 {
				avg[key] = mean
			}
		}
		out[i] = avg
	}
	return out
}
