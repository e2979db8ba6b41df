package testing

import (
	"net/url"
	"regexp"
	"strconv"

	"github.com/aristath/valuescope/internal/domain"
)

// Test endpoints. MockTransport handlers route on these URLs.
const (
	StatementsURL = "https://statements.test/NewFinanceAnalysis"
	DatacenterURL = "https://datacenter.test/api/data/v1/get"
	StockListURL  = "https://stocklist.test/dataapi/xuangu/list"
)

// NewStockFixtures returns a small universe of base info records.
func NewStockFixtures() []domain.StockBaseInfo {
	return []domain.StockBaseInfo{
		{
			ID:             "600887.SH",
			Code:           "600887",
			Exchange:       domain.ExchangeShanghai,
			Name:           "伊利股份",
			ROE:            20.1,
			TotalMarketCap: 1.8e11,
			TTMPE:          15.2,
			Industry:       "食品饮料",
		},
		{
			ID:             "000858.SZ",
			Code:           "000858",
			Exchange:       domain.ExchangeShenzhen,
			Name:           "五粮液",
			ROE:            25.3,
			TotalMarketCap: 5.6e11,
			TTMPE:          18.4,
			Industry:       "食品饮料",
		},
		{
			ID:             "430047.BJ",
			Code:           "430047",
			Exchange:       domain.ExchangeBeijing,
			Name:           "诺思兰德",
			ROE:            -3.5,
			TotalMarketCap: 3.2e9,
			TTMPE:          -40,
			Industry:       "生物制品",
		},
	}
}

// NewLeadingIndicatorRows returns count datacenter rows for id, newest first,
// starting at latestYear. Revenue grows by 10 each year back in time so
// tests can tell the rows apart.
func NewLeadingIndicatorRows(id string, latestYear, count int) domain.Series {
	rows := make(domain.Series, count)
	for i := 0; i < count; i++ {
		year := latestYear - i
		rows[i] = domain.Record{
			"SECUCODE":         id,
			"REPORT_YEAR":      strconv.Itoa(year),
			"REPORT_DATE":      strconv.Itoa(year) + "-12-31 00:00:00",
			"TOTALOPERATEREVE": float64(100 + 10*i),
			"PARENTNETPROFIT":  float64(10 + i),
			"ROEJQ":            float64(20 - i),
		}
	}
	return rows
}

// NewStatementRows returns statement rows for the given report years, in the
// order given, each carrying field set to the year value.
func NewStatementRows(field string, years ...int) domain.Series {
	rows := make(domain.Series, len(years))
	for i, year := range years {
		rows[i] = domain.Record{
			"REPORT_DATE": strconv.Itoa(year) + "-12-31 00:00:00",
			field:         float64(year),
		}
	}
	return rows
}

// StatementPayload wraps rows in the statement endpoint envelope.
func StatementPayload(rows domain.Series) map[string]any {
	return map[string]any{"data": recordsToAny(rows)}
}

// DatacenterPayload wraps rows in the datacenter envelope.
func DatacenterPayload(rows domain.Series) map[string]any {
	return map[string]any{
		"success": true,
		"result":  map[string]any{"data": recordsToAny(rows)},
	}
}

func recordsToAny(rows domain.Series) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any(r)
	}
	return out
}

// StockListPayload renders stocks as the screener endpoint returns them.
func StockListPayload(stocks []domain.StockBaseInfo) map[string]any {
	rows := make([]any, 0, len(stocks))
	for _, s := range stocks {
		rows = append(rows, map[string]any{
			"SECUCODE":           s.ID,
			"SECURITY_CODE":      s.Code,
			"SECURITY_NAME_ABBR": s.Name,
			"ROE_WEIGHT":         s.ROE,
			"TOTAL_MARKET_CAP":   s.TotalMarketCap,
			"PE9":                s.TTMPE,
			"INDUSTRY":           s.Industry,
		})
	}
	return map[string]any{"result": map[string]any{"data": rows}}
}

var secucodePattern = regexp.MustCompile(`SECUCODE="([^"]+)"`)

// SecucodeFromParams returns the stock id a datacenter request filters on.
func SecucodeFromParams(params url.Values) string {
	m := secucodePattern.FindStringSubmatch(params.Get("filter"))
	if m == nil {
		return ""
	}
	return m[1]
}
