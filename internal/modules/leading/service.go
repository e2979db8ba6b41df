package leading

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/modules/universe"
	"github.com/aristath/valuescope/internal/reconcile"
)

// DefaultSyncPages is the number of pages a full sync is split into.
const DefaultSyncPages = 50

var (
	// ErrSyncInProgress is returned when Sync is called while another sync runs.
	ErrSyncInProgress = errors.New("leading indicator sync already in progress")
	// ErrInvalidPage is returned for a start page outside the page range.
	ErrInvalidPage = errors.New("invalid sync page")
)

// Store persists leading indicators keyed by id.
type Store interface {
	reconcile.Store[domain.StockWithLeadingIndicators]
	List(ctx context.Context, offset, limit int) ([]domain.StockWithLeadingIndicators, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int64, error)
}

// Universe is the base info the service fetches for.
type Universe interface {
	BaseInfoSource
	reconcile.Prerequisite
	Count(ctx context.Context) (int, error)
	Page(ctx context.Context, offset, limit int) ([]domain.StockBaseInfo, error)
}

// MetaStore reads and updates the persisted meta info.
type MetaStore interface {
	MetaInfo(ctx context.Context) (domain.MetaInfo, error)
	UpdateMetaInfo(ctx context.Context, fn func(*domain.MetaInfo)) error
}

// Config tunes the service.
type Config struct {
	Concurrency int
	SyncPages   int
}

// SyncOptions selects the pages of a sync run.
type SyncOptions struct {
	Pages    int `json:"pages,omitempty"`
	FromPage int `json:"fromPage,omitempty"`
}

// SyncResult summarizes a sync run.
type SyncResult struct {
	Pages    int      `json:"pages"`
	Fetched  int      `json:"fetched"`
	Failed   []string `json:"failed,omitempty"`
	Stopped  bool     `json:"stopped"`
	NextPage int      `json:"nextPage"`
	Complete bool     `json:"complete"`
}

// SyncStatus is the state of the paged sync.
type SyncStatus struct {
	Running    bool  `json:"running"`
	Checkpoint *int  `json:"checkpoint,omitempty"`
	TotalPages int   `json:"totalPages"`
	UpdateTime int64 `json:"updateTime,omitempty"`
}

// Service resolves leading indicators through the cache and runs the paged
// sync of the whole universe.
type Service struct {
	reconciler *reconcile.Reconciler[domain.StockWithLeadingIndicators]
	fetcher    *Fetcher
	store      Store
	universe   Universe
	meta       MetaStore
	cfg        Config
	now        func() time.Time
	log        zerolog.Logger

	running atomic.Bool
	stop    atomic.Bool
	pages   atomic.Int64 // page count of the running sync
}

// NewService creates a leading indicator service.
func NewService(client IndicatorClient, store Store, universe Universe, meta MetaStore, cfg Config, log zerolog.Logger) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = reconcile.DefaultConcurrency
	}
	if cfg.SyncPages < 1 {
		cfg.SyncPages = DefaultSyncPages
	}

	fetcher := NewFetcher(client, universe, cfg.Concurrency)
	return &Service{
		reconciler: reconcile.New[domain.StockWithLeadingIndicators]("leading_indicators", store, universe, fetcher, log),
		fetcher:    fetcher,
		store:      store,
		universe:   universe,
		meta:       meta,
		cfg:        cfg,
		now:        time.Now,
		log:        log.With().Str("service", "leading_indicators").Logger(),
	}
}

// Resolve returns the leading indicators of ids in input order, fetching the
// ones that are not cached.
func (s *Service) Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithLeadingIndicators], error) {
	return s.reconciler.Resolve(ctx, ids, opts)
}

// List returns a page of cached leading indicators ordered by id.
func (s *Service) List(ctx context.Context, offset, limit int) ([]domain.StockWithLeadingIndicators, int, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count leading indicators: %w", err)
	}
	items, err := s.store.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leading indicators: %w", err)
	}
	return items, total, nil
}

// Sync fetches the leading indicators of every stock in the universe, one
// page at a time. Each page is fetched concurrently and written in one bulk
// put. The page about to be fetched is saved as checkpoint so an interrupted
// sync can resume from it.
func (s *Service) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)
	s.stop.Store(false)

	pages := opts.Pages
	if pages < 1 {
		pages = s.cfg.SyncPages
	}
	s.pages.Store(int64(pages))
	if opts.FromPage < 0 || opts.FromPage >= pages {
		return nil, fmt.Errorf("%w: start page %d outside 0..%d", ErrInvalidPage, opts.FromPage, pages-1)
	}

	total, err := s.universe.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stock base info: %w", err)
	}
	if total == 0 {
		return nil, universe.ErrEmptyUniverse
	}
	pageSize := (total + pages - 1) / pages

	s.log.Info().
		Int("stocks", total).
		Int("pages", pages).
		Int("from_page", opts.FromPage).
		Int("page_size", pageSize).
		Msg("Starting leading indicator sync")

	result := &SyncResult{NextPage: opts.FromPage}
	for page := opts.FromPage; page < pages; page++ {
		if s.stop.Load() {
			result.Stopped = true
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		checkpoint := page
		if err := s.meta.UpdateMetaInfo(ctx, func(m *domain.MetaInfo) { m.SetSyncCheckpoint(checkpoint, pages) }); err != nil {
			return result, fmt.Errorf("failed to save sync checkpoint: %w", err)
		}

		fetched, failed, err := s.syncPage(ctx, page*pageSize, pageSize)
		if err != nil {
			return result, fmt.Errorf("failed to sync page %d: %w", page, err)
		}

		result.Pages++
		result.Fetched += fetched
		result.Failed = append(result.Failed, failed...)
		result.NextPage = page + 1

		s.log.Debug().
			Int("page", page).
			Int("fetched", fetched).
			Int("failed", len(failed)).
			Msg("Synced leading indicator page")
	}

	if result.Stopped {
		next := result.NextPage
		if err := s.meta.UpdateMetaInfo(ctx, func(m *domain.MetaInfo) { m.SetSyncCheckpoint(next, pages) }); err != nil {
			s.log.Warn().Err(err).Msg("Failed to save sync checkpoint")
		}
	}

	if result.NextPage == pages {
		result.Complete = true
		if err := s.meta.UpdateMetaInfo(ctx, func(m *domain.MetaInfo) {
			m.ClearSyncCheckpoint()
			m.Touch(domain.DatasetLeadingIndicators, s.now())
		}); err != nil {
			s.log.Warn().Err(err).Msg("Failed to record leading indicator update time")
		}
	}

	s.log.Info().
		Int("pages", result.Pages).
		Int("fetched", result.Fetched).
		Int("failed", len(result.Failed)).
		Bool("stopped", result.Stopped).
		Msg("Leading indicator sync finished")

	return result, nil
}

func (s *Service) syncPage(ctx context.Context, offset, limit int) (int, []string, error) {
	stocks, err := s.universe.Page(ctx, offset, limit)
	if err != nil {
		return 0, nil, err
	}
	if len(stocks) == 0 {
		return 0, nil, nil
	}

	byID := make(map[string]domain.StockBaseInfo, len(stocks))
	ids := make([]string, len(stocks))
	for i, stock := range stocks {
		byID[stock.ID] = stock
		ids[i] = stock.ID
	}

	outcomes := reconcile.FanOut(ctx, ids, s.cfg.Concurrency, func(ctx context.Context, id string) (domain.StockWithLeadingIndicators, error) {
		return s.fetcher.FetchStock(ctx, byID[id])
	})

	items := make(map[string]domain.StockWithLeadingIndicators, len(outcomes))
	var failed []string
	for _, o := range outcomes {
		if o.Err != nil {
			s.log.Warn().Str("id", o.ID).Err(o.Err).Msg("Failed to fetch leading indicators")
			failed = append(failed, o.ID)
			continue
		}
		items[o.ID] = o.Value
	}
	if len(items) == 0 {
		return 0, failed, nil
	}

	if err := s.store.PutMany(ctx, items); err != nil {
		return 0, failed, err
	}
	return len(items), failed, nil
}

// Stop asks a running sync to stop before its next page. In-flight requests
// are not interrupted. It reports whether a sync was running.
func (s *Service) Stop() bool {
	if !s.running.Load() {
		return false
	}
	s.stop.Store(true)
	s.log.Info().Msg("Leading indicator sync stop requested")
	return true
}

// Running reports whether a sync is in progress.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Status reports the sync state and the persisted checkpoint.
func (s *Service) Status(ctx context.Context) (SyncStatus, error) {
	meta, err := s.meta.MetaInfo(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	status := SyncStatus{
		Running:    s.running.Load(),
		Checkpoint: meta.SyncPage,
		TotalPages: checkpointPages(meta, s.cfg.SyncPages),
		UpdateTime: meta.UpdateTime[domain.DatasetLeadingIndicators],
	}
	if status.Running {
		status.TotalPages = int(s.pages.Load())
	}
	return status, nil
}

// checkpointPages returns the page count the checkpoint in meta was saved
// with, or fallback when none was recorded.
func checkpointPages(meta domain.MetaInfo, fallback int) int {
	if meta.SyncPages != nil && *meta.SyncPages > 0 {
		return *meta.SyncPages
	}
	return fallback
}

// Resume continues a sync from the persisted checkpoint, split into the
// same number of pages as the run that saved it, or starts a new one when
// there is none.
func (s *Service) Resume(ctx context.Context) (*SyncResult, error) {
	meta, err := s.meta.MetaInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync checkpoint: %w", err)
	}

	opts := SyncOptions{}
	if meta.SyncPage != nil {
		pages := checkpointPages(meta, s.cfg.SyncPages)
		if *meta.SyncPage >= 0 && *meta.SyncPage < pages {
			opts.Pages = pages
			opts.FromPage = *meta.SyncPage
		}
	}
	return s.Sync(ctx, opts)
}

// Clear removes every cached leading indicator and its update time.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear leading indicators: %w", err)
	}
	return s.meta.UpdateMetaInfo(ctx, func(m *domain.MetaInfo) {
		delete(m.UpdateTime, domain.DatasetLeadingIndicators)
		m.ClearSyncCheckpoint()
	})
}
