package screening

import (
	"math"

	"github.com/shopspring/decimal"
)

// FormatNumber renders v with two decimals, switching to 亿 above 1e8 and
// 万 above 1e4. unit is appended to unscaled values only.
func FormatNumber(v float64, unit IndicatorUnit) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 1) {
		return "Infinity"
	}
	if math.IsInf(v, -1) {
		return "-Infinity"
	}

	d := decimal.NewFromFloat(v)
	switch {
	case d.GreaterThan(yi):
		return d.Div(yi).StringFixed(2) + " 亿"
	case d.GreaterThan(wan):
		return d.Div(wan).StringFixed(2) + " 万"
	default:
		return d.StringFixed(2) + string(unit)
	}
}
