// Package reports fetches, merges and caches the annual statements of each
// stock, overlaid with its leading indicators.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/domain"
)

const (
	// DefaultYears is the number of fiscal years requested per stock.
	DefaultYears = 6

	// datesPerRequest is the most report dates the statement endpoint accepts.
	datesPerRequest = 5

	maxCompanyType = 4
	minCompanyType = 1
)

// StatementClient fetches one statement for one company type and date batch.
type StatementClient interface {
	FetchStatement(ctx context.Context, statement eastmoney.Statement, req eastmoney.StatementRequest) (domain.Series, error)
}

// LatestReportYear is the newest fiscal year whose annual report is expected
// to be published at now. Reports appear by the end of April.
func LatestReportYear(now time.Time) int {
	if now.Month() > time.April {
		return now.Year() - 1
	}
	return now.Year() - 2
}

// ReportDates returns the year-end dates of the years fiscal years up to
// latest, oldest first.
func ReportDates(latest, years int) []string {
	dates := make([]string, years)
	for i := 0; i < years; i++ {
		dates[i] = strconv.Itoa(latest-years+1+i) + "-12-31"
	}
	return dates
}

// StatementFetcher retrieves merged annual statements.
type StatementFetcher struct {
	client StatementClient
	now    func() time.Time
	log    zerolog.Logger
}

// NewStatementFetcher creates a statement fetcher.
func NewStatementFetcher(client StatementClient, log zerolog.Logger) *StatementFetcher {
	return &StatementFetcher{
		client: client,
		now:    time.Now,
		log:    log.With().Str("component", "statement_fetcher").Logger(),
	}
}

// FetchReports returns the merged statements of id for the given number of
// years, newest first. The balance sheet, income statement and cash flow
// are fetched in parallel and overlaid per position; the result is as long
// as the longest statement.
func (f *StatementFetcher) FetchReports(ctx context.Context, id string, years int) (domain.Series, error) {
	code, err := domain.RemoteCode(id)
	if err != nil {
		return nil, err
	}
	if years < 1 {
		years = DefaultYears
	}
	dates := ReportDates(LatestReportYear(f.now()), years)

	branches := make([]domain.Series, len(eastmoney.Statements))
	g, gctx := errgroup.WithContext(ctx)
	for i, statement := range eastmoney.Statements {
		g.Go(func() error {
			rows, err := f.FetchStatement(gctx, statement, code, dates)
			if err != nil {
				return fmt.Errorf("%s: %w", statement, err)
			}
			branches[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return overlay(branches...), nil
}

// FetchStatement probes company types from 4 down to 1 and returns the
// first non-empty result, or an empty series when every type is empty.
func (f *StatementFetcher) FetchStatement(ctx context.Context, statement eastmoney.Statement, code string, dates []string) (domain.Series, error) {
	for companyType := maxCompanyType; companyType >= minCompanyType; companyType-- {
		rows, err := f.fetchBatches(ctx, statement, code, companyType, dates)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
		f.log.Debug().
			Str("code", code).
			Str("statement", string(statement)).
			Int("company_type", companyType).
			Msg("No rows for company type")
	}
	return domain.Series{}, nil
}

// fetchBatches requests dates in batches of five in parallel and returns the
// concatenated rows sorted by report year, newest first.
func (f *StatementFetcher) fetchBatches(ctx context.Context, statement eastmoney.Statement, code string, companyType int, dates []string) (domain.Series, error) {
	batches := make([][]string, 0, (len(dates)+datesPerRequest-1)/datesPerRequest)
	for start := 0; start < len(dates); start += datesPerRequest {
		batches = append(batches, dates[start:min(start+datesPerRequest, len(dates))])
	}

	results := make([]domain.Series, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			rows, err := f.client.FetchStatement(gctx, statement, eastmoney.StatementRequest{
				Code:        code,
				CompanyType: companyType,
				Dates:       batch,
			})
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows domain.Series
	for _, r := range results {
		rows = append(rows, r...)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Year() > rows[j].Year() })
	return rows, nil
}

// overlay merges the series position by position; later series win on key
// conflicts. The result is as long as the longest input.
func overlay(series ...domain.Series) domain.Series {
	n := 0
	for _, s := range series {
		n = max(n, len(s))
	}

	out := make(domain.Series, n)
	for i := range out {
		merged := domain.Record{}
		for _, s := range series {
			if i < len(s) {
				merged = merged.Merge(s[i])
			}
		}
		out[i] = merged
	}
	return out
}
