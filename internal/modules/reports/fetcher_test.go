package reports

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/domain"
	testingpkg "github.com/aristath/valuescope/internal/testing"
)

var testEndpoints = eastmoney.Endpoints{
	Statements: testingpkg.StatementsURL,
	Datacenter: testingpkg.DatacenterURL,
	StockList:  testingpkg.StockListURL,
}

// statementField is the field each statement fixture carries.
var statementField = map[eastmoney.Statement]string{
	eastmoney.BalanceSheet:    "TOTAL_ASSETS",
	eastmoney.IncomeStatement: "OPERATE_INCOME",
	eastmoney.CashFlow:        "NETCASH_OPERATE",
}

func statementOf(rawURL string) eastmoney.Statement {
	return eastmoney.Statement(rawURL[strings.LastIndex(rawURL, "/")+1:])
}

func yearsOf(params url.Values) []int {
	var years []int
	for _, date := range strings.Split(params.Get("dates"), ",") {
		y, err := strconv.Atoi(strings.SplitN(date, "-", 2)[0])
		if err == nil {
			years = append(years, y)
		}
	}
	return years
}

func newStatementFetcher(transport *testingpkg.MockTransport, now time.Time) *StatementFetcher {
	f := NewStatementFetcher(eastmoney.NewClient(transport, testEndpoints, zerolog.Nop()), zerolog.Nop())
	f.now = func() time.Time { return now }
	return f
}

func TestLatestReportYear(t *testing.T) {
	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), 2022},
		{time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC), 2022},
		{time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), 2023},
		{time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), 2023},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format("2006-01-02"), func(t *testing.T) {
			assert.Equal(t, tt.want, LatestReportYear(tt.now))
		})
	}
}

func TestReportDates(t *testing.T) {
	assert.Equal(t, []string{
		"2018-12-31", "2019-12-31", "2020-12-31", "2021-12-31", "2022-12-31", "2023-12-31",
	}, ReportDates(2023, 6))
	assert.Equal(t, []string{"2023-12-31"}, ReportDates(2023, 1))
}

func TestFetchStatement_ProbesCompanyTypes(t *testing.T) {
	transport := testingpkg.NewMockTransport(func(rawURL string, params url.Values) (any, error) {
		if params.Get("companyType") != "2" {
			return map[string]any{"data": nil}, nil
		}
		return testingpkg.StatementPayload(testingpkg.NewStatementRows("TOTAL_ASSETS", yearsOf(params)...)), nil
	})
	f := newStatementFetcher(transport, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))

	rows, err := f.FetchStatement(context.Background(), eastmoney.BalanceSheet, "SH600887", ReportDates(2023, 6))
	require.NoError(t, err)

	require.Len(t, rows, 6)
	for i, row := range rows {
		assert.Equal(t, 2023-i, row.Year(), "rows must be newest first")
	}

	calls := transport.Calls()
	require.Len(t, calls, 6, "two batches for each of company types 4, 3 and 2")
	types := map[string]int{}
	batches := map[string]bool{}
	for _, c := range calls {
		types[c.Params.Get("companyType")]++
		batches[c.Params.Get("dates")] = true
		assert.Equal(t, "SH600887", c.Params.Get("code"))
		assert.Equal(t, testingpkg.StatementsURL+"/zcfzbAjaxNew", c.URL)
	}
	assert.Equal(t, map[string]int{"4": 2, "3": 2, "2": 2}, types)
	assert.Equal(t, map[string]bool{
		"2018-12-31,2019-12-31,2020-12-31,2021-12-31,2022-12-31": true,
		"2023-12-31": true,
	}, batches)
}

func TestFetchStatement_AllTypesEmpty(t *testing.T) {
	transport := testingpkg.NewMockTransport(func(string, url.Values) (any, error) {
		return map[string]any{}, nil
	})
	f := newStatementFetcher(transport, time.Now())

	rows, err := f.FetchStatement(context.Background(), eastmoney.CashFlow, "SZ000858", ReportDates(2023, 3))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 4, transport.CallCount(""))
}

func TestFetchStatement_RemoteErrorStopsProbing(t *testing.T) {
	transport := testingpkg.NewMockTransport(func(string, url.Values) (any, error) {
		return nil, &eastmoney.RemoteError{Status: 500, Message: "boom"}
	})
	f := newStatementFetcher(transport, time.Now())

	_, err := f.FetchStatement(context.Background(), eastmoney.CashFlow, "SZ000858", ReportDates(2023, 3))
	var remote *eastmoney.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 1, transport.CallCount(""))
}

func TestFetchReports_OverlaysStatements(t *testing.T) {
	transport := testingpkg.NewMockTransport(func(rawURL string, params url.Values) (any, error) {
		statement := statementOf(rawURL)
		years := yearsOf(params)
		if statement == eastmoney.IncomeStatement && len(years) > 2 {
			years = years[len(years)-2:]
		}
		return testingpkg.StatementPayload(testingpkg.NewStatementRows(statementField[statement], years...)), nil
	})
	f := newStatementFetcher(transport, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))

	reports, err := f.FetchReports(context.Background(), "600887.SH", 3)
	require.NoError(t, err)
	require.Len(t, reports, 3, "longest statement decides the length")

	assert.Equal(t, 2023, reports[0].Year())
	for _, field := range []string{"TOTAL_ASSETS", "OPERATE_INCOME", "NETCASH_OPERATE"} {
		v, ok := reports[0].Number(field)
		require.True(t, ok, field)
		assert.Equal(t, 2023.0, v)
	}

	_, ok := reports[2].Number("OPERATE_INCOME")
	assert.False(t, ok, "short statement leaves the oldest record incomplete")
	v, ok := reports[2].Number("TOTAL_ASSETS")
	require.True(t, ok)
	assert.Equal(t, 2021.0, v)

	assert.Equal(t, 3, transport.CallCount(""), "one batch per statement")
}

func TestFetchReports_InvalidID(t *testing.T) {
	f := newStatementFetcher(testingpkg.NewMockTransport(nil), time.Now())

	_, err := f.FetchReports(context.Background(), "600887", 3)
	assert.Error(t, err)
}

func TestOverlay(t *testing.T) {
	a := domain.Series{{"k": 1.0, "a": 1.0}}
	b := domain.Series{{"k": 2.0}, {"b": 2.0}}

	merged := overlay(a, b)
	assert.Equal(t, domain.Series{{"k": 2.0, "a": 1.0}, {"b": 2.0}}, merged)
	assert.Equal(t, domain.Record{"k": 1.0, "a": 1.0}, a[0], "inputs are not modified")
	assert.Empty(t, overlay())
}
