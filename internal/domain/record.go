package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one fiscal year of report data keyed by remote field name.
type Record map[string]any

// Series is a list of records ordered newest first.
type Series []Record

// Number reads key as a float. Nulls, missing keys and non-numeric values are
// reported as absent; zero is a present value.
func (r Record) Number(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return toFloat(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		return parseDecimal(n.String())
	case decimal.Decimal:
		return n.InexactFloat64(), true
	case string:
		return parseDecimal(n)
	default:
		return 0, false
	}
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// Year returns the fiscal year of the record from reportYear or REPORT_DATE,
// or 0 when neither is usable.
func (r Record) Year() int {
	if y, ok := r.Number("reportYear"); ok {
		return int(y)
	}
	date, ok := r["REPORT_DATE"].(string)
	if !ok {
		return 0
	}
	head, _, _ := strings.Cut(date, "-")
	y, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0
	}
	return y
}

// Merge overlays other onto a copy of r; keys in other win.
func (r Record) Merge(other Record) Record {
	out := make(Record, len(r)+len(other))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the sorted union of keys across the series.
func (s Series) Keys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, rec := range s {
		for k := range rec {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
