package eastmoney

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/domain"
)

// Endpoints are the base URLs of the three eastmoney services.
type Endpoints struct {
	Statements string // NewFinanceAnalysis base, statement paths are appended
	Datacenter string
	StockList  string
}

// Statement identifies one of the three annual statements.
type Statement string

const (
	BalanceSheet    Statement = "zcfzbAjaxNew"
	IncomeStatement Statement = "lrbAjaxNew"
	CashFlow        Statement = "xjllbAjaxNew"
)

// Statements lists every statement in overlay order.
var Statements = []Statement{BalanceSheet, IncomeStatement, CashFlow}

// StatementRequest selects one company type and a batch of report dates.
type StatementRequest struct {
	Code        string   // remote code, e.g. "SH600887"
	CompanyType int      // 1..4
	Dates       []string // "YYYY-12-31", at most five per request
}

// StockListFilter narrows the screener query. Zero values are not sent.
type StockListFilter struct {
	MinPE               float64 `json:"minPe,omitempty"`
	MaxPE               float64 `json:"maxPe,omitempty"`
	MinMarketCap        float64 `json:"minTotalMarketCap,omitempty"`
	MinROE              float64 `json:"minRoe,omitempty"`
	ListedOverFiveYears bool    `json:"isOverFiveYear,omitempty"`
}

const stockListColumns = "SECUCODE,SECURITY_CODE,SECURITY_NAME_ABBR,NEW_PRICE,CHANGE_RATE,VOLUME_RATIO,HIGH_PRICE,LOW_PRICE,PRE_CLOSE_PRICE,VOLUME,DEAL_AMOUNT,TURNOVERRATE,PE9,TOTAL_MARKET_CAP,ROE_WEIGHT,LISTING_DATE,INDUSTRY"

// Client wraps a Transport with the eastmoney request shapes.
type Client struct {
	transport Transport
	endpoints Endpoints
	log       zerolog.Logger
}

// NewClient creates an eastmoney client.
func NewClient(transport Transport, endpoints Endpoints, log zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		endpoints: endpoints,
		log:       log.With().Str("client", "eastmoney").Logger(),
	}
}

// FetchStatement returns the statement rows for one company type and date
// batch. A payload without data is an empty series.
func (c *Client) FetchStatement(ctx context.Context, statement Statement, req StatementRequest) (domain.Series, error) {
	params := url.Values{}
	params.Set("companyType", strconv.Itoa(req.CompanyType))
	params.Set("reportDateType", "0")
	params.Set("reportType", "1")
	params.Set("dates", strings.Join(req.Dates, ","))
	params.Set("code", req.Code)

	payload, err := c.transport.Get(ctx, strings.TrimRight(c.endpoints.Statements, "/")+"/"+string(statement), params)
	if err != nil {
		return nil, err
	}

	rows, _ := extractRecords(payload, statementDataPath)
	return rows, nil
}

// FetchLeadingIndicators returns up to eleven annual leading indicator rows,
// newest first, each tagged with a numeric reportYear.
func (c *Client) FetchLeadingIndicators(ctx context.Context, code string, exchange domain.Exchange) (domain.Series, error) {
	filter := fmt.Sprintf(`(SECUCODE="%s.%s")(REPORT_TYPE="年报")`, code, exchange)

	params := url.Values{}
	params.Set("type", "RPT_F10_FINANCE_MAINFINADATA")
	params.Set("sty", "APP_F10_MAINFINADATA")
	params.Set("quoteColumns", "")
	params.Set("filter", filter)
	params.Set("p", "1")
	params.Set("ps", "11")
	params.Set("sr", "-1")
	params.Set("st", "REPORT_DATE")
	params.Set("source", "HSF10")
	params.Set("client", "PC")

	payload, err := c.transport.Get(ctx, c.endpoints.Datacenter, params)
	if err != nil {
		return nil, err
	}

	rows, ok := extractRecords(payload, datacenterDataPath)
	if !ok {
		return nil, &RemoteError{Status: http.StatusInternalServerError, Message: "fetch leading indicators failed"}
	}

	for i, row := range rows {
		tagged := row.Merge(nil)
		if year, ok := row.Number("REPORT_YEAR"); ok {
			tagged["reportYear"] = year
		}
		rows[i] = tagged
	}

	c.log.Debug().Str("code", code).Int("rows", len(rows)).Msg("Fetched leading indicators")
	return rows, nil
}

// FetchStockList returns the screener universe matching filter. A payload
// without a data array is an empty list.
func (c *Client) FetchStockList(ctx context.Context, filter StockListFilter) ([]domain.StockBaseInfo, error) {
	params := url.Values{}
	params.Set("st", "CHANGE_RATE")
	params.Set("sr", "-1")
	params.Set("ps", "9999")
	params.Set("p", "1")
	params.Set("sty", stockListColumns)
	params.Set("filter", filter.query())
	params.Set("source", "SELECT_SECURITIES")
	params.Set("client", "WEB")
	params.Set("size", "9999")

	payload, err := c.transport.Get(ctx, c.endpoints.StockList, params)
	if err != nil {
		return nil, err
	}

	rows, ok := extractRecords(payload, datacenterDataPath)
	if !ok {
		return []domain.StockBaseInfo{}, nil
	}

	stocks := make([]domain.StockBaseInfo, 0, len(rows))
	for _, row := range rows {
		secucode, _ := row["SECUCODE"].(string)
		code, exchange, err := domain.ParseStockID(secucode)
		if err != nil {
			c.log.Warn().Str("secucode", secucode).Msg("Skipping stock with malformed SECUCODE")
			continue
		}
		name, _ := row["SECURITY_NAME_ABBR"].(string)
		industry, _ := row["INDUSTRY"].(string)
		roe, _ := row.Number("ROE_WEIGHT")
		marketCap, _ := row.Number("TOTAL_MARKET_CAP")
		pe, _ := row.Number("PE9")

		stocks = append(stocks, domain.StockBaseInfo{
			ID:             secucode,
			Code:           code,
			Exchange:       exchange,
			Name:           name,
			ROE:            roe,
			TotalMarketCap: marketCap,
			TTMPE:          pe,
			Industry:       industry,
		})
	}

	c.log.Info().Int("count", len(stocks)).Msg("Fetched stock list")
	return stocks, nil
}

// query renders the screener filter expression.
func (f StockListFilter) query() string {
	var b strings.Builder
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	if f.MinPE != 0 {
		b.WriteString("(PE9>=" + num(f.MinPE) + ")")
	}
	if f.MaxPE != 0 {
		b.WriteString("(PE9<=" + num(f.MaxPE) + ")")
	}
	if f.MinMarketCap != 0 {
		b.WriteString("(TOTAL_MARKET_CAP>=" + num(f.MinMarketCap) + ")")
	}
	if f.MinROE != 0 {
		b.WriteString("(ROE_WEIGHT>=" + num(f.MinROE) + ")")
	}
	if f.ListedOverFiveYears {
		b.WriteString(`(@LISTING_DATE="OVER5Y")`)
	}
	return b.String()
}
