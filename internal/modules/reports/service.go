package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/reconcile"
)

// ErrNoLeadingIndicators is returned for an id whose leading indicators
// could not be resolved.
var ErrNoLeadingIndicators = errors.New("leading indicators not found")

// IndicatorResolver resolves leading indicators through their cache.
type IndicatorResolver interface {
	Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithLeadingIndicators], error)
}

// Store persists merged reports keyed by id.
type Store interface {
	reconcile.Store[domain.StockWithReports]
	List(ctx context.Context, offset, limit int) ([]domain.StockWithReports, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int64, error)
}

// Config tunes the service.
type Config struct {
	Years       int
	Concurrency int
}

// Fetcher implements reconcile.Fetcher for merged reports.
type Fetcher struct {
	statements  *StatementFetcher
	indicators  IndicatorResolver
	years       int
	concurrency int
}

// Fetch resolves the leading indicators of ids, then fetches and merges the
// statements of every id that has them.
func (f *Fetcher) Fetch(ctx context.Context, ids []string, opts reconcile.Options) []reconcile.Outcome[domain.StockWithReports] {
	years := opts.WindowYears
	if years < 1 {
		years = f.years
	}

	indicators := make(map[string]domain.StockWithLeadingIndicators, len(ids))
	causes := make(map[string]error)

	resolved, err := f.indicators.Resolve(ctx, ids, reconcile.Options{})
	if err != nil {
		for _, id := range ids {
			causes[id] = err
		}
	} else {
		for _, item := range resolved.Items {
			indicators[item.ID] = item
		}
		for _, failure := range resolved.Failures {
			causes[failure.ID] = failure.Err
		}
	}

	return reconcile.FanOut(ctx, ids, f.concurrency, func(ctx context.Context, id string) (domain.StockWithReports, error) {
		stock, ok := indicators[id]
		if !ok {
			if cause := causes[id]; cause != nil {
				return domain.StockWithReports{}, fmt.Errorf("%s: %w: %w", id, ErrNoLeadingIndicators, cause)
			}
			return domain.StockWithReports{}, fmt.Errorf("%s: %w", id, ErrNoLeadingIndicators)
		}

		statements, err := f.statements.FetchReports(ctx, id, years)
		if err != nil {
			return domain.StockWithReports{}, fmt.Errorf("failed to fetch statements for %s: %w", id, err)
		}

		return domain.StockWithReports{
			ID:      stock.ID,
			Code:    stock.Code,
			Name:    stock.Name,
			Reports: withIndicators(statements, stock.Indicators),
		}, nil
	})
}

// withIndicators overlays indicators onto statements by position. The result
// keeps the length of statements.
func withIndicators(statements, indicators domain.Series) domain.Series {
	out := make(domain.Series, len(statements))
	for i, report := range statements {
		if i < len(indicators) {
			out[i] = report.Merge(indicators[i])
		} else {
			out[i] = report.Merge(nil)
		}
	}
	return out
}

// Service resolves merged reports through the cache.
type Service struct {
	reconciler *reconcile.Reconciler[domain.StockWithReports]
	fetcher    *Fetcher
	store      Store
	log        zerolog.Logger
}

// NewService creates a report service. prereq is checked for every id that
// is not cached before anything is fetched.
func NewService(client StatementClient, indicators IndicatorResolver, store Store, prereq reconcile.Prerequisite, cfg Config, log zerolog.Logger) *Service {
	if cfg.Years < 1 {
		cfg.Years = DefaultYears
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = reconcile.DefaultConcurrency
	}

	fetcher := &Fetcher{
		statements:  NewStatementFetcher(client, log),
		indicators:  indicators,
		years:       cfg.Years,
		concurrency: cfg.Concurrency,
	}
	return &Service{
		reconciler: reconcile.New[domain.StockWithReports]("financial_reports", store, prereq, fetcher, log),
		fetcher:    fetcher,
		store:      store,
		log:        log.With().Str("service", "financial_reports").Logger(),
	}
}

// Resolve returns the merged reports of ids in input order, fetching the
// ones that are not cached.
func (s *Service) Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithReports], error) {
	return s.reconciler.Resolve(ctx, ids, opts)
}

// List returns a page of cached reports ordered by id and the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]domain.StockWithReports, int, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count financial reports: %w", err)
	}
	items, err := s.store.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list financial reports: %w", err)
	}
	return items, total, nil
}

// Clear removes every cached report.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear financial reports: %w", err)
	}
	s.log.Info().Msg("Cleared financial reports")
	return nil
}
