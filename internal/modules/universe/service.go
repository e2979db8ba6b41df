// Package universe maintains the screening universe: the base info of every
// listed stock and the market snapshots derived from it.
package universe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/domain"
)

// ErrEmptyUniverse is returned by operations that need base info before any
// universe sync has run.
var ErrEmptyUniverse = errors.New("stock base info is empty, sync the stock list first")

// StockListClient fetches the screener stock list.
type StockListClient interface {
	FetchStockList(ctx context.Context, filter eastmoney.StockListFilter) ([]domain.StockBaseInfo, error)
}

// BaseInfoStore persists base info keyed by id.
type BaseInfoStore interface {
	GetMany(ctx context.Context, ids []string) (map[string]domain.StockBaseInfo, error)
	PutMany(ctx context.Context, items map[string]domain.StockBaseInfo) error
	Missing(ctx context.Context, ids []string) ([]string, error)
	List(ctx context.Context, offset, limit int) ([]domain.StockBaseInfo, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int64, error)
}

// MetaUpdater applies a change to the persisted meta info.
type MetaUpdater interface {
	UpdateMetaInfo(ctx context.Context, fn func(*domain.MetaInfo)) error
}

// ListFilter narrows List. Zero values are ignored.
type ListFilter struct {
	MinPE  float64 `json:"minPe,omitempty"`
	MaxPE  float64 `json:"maxPe,omitempty"`
	MinROE float64 `json:"minROE,omitempty"`
	MaxROE float64 `json:"maxROE,omitempty"`
	Search string  `json:"searchKey,omitempty"`
}

// Matches reports whether stock passes the filter. Search matches the id or
// the name, case-insensitively.
func (f ListFilter) Matches(stock domain.StockBaseInfo) bool {
	if f.MaxPE != 0 && stock.TTMPE > f.MaxPE {
		return false
	}
	if f.MinPE != 0 && stock.TTMPE < f.MinPE {
		return false
	}
	if f.MaxROE != 0 && stock.ROE > f.MaxROE {
		return false
	}
	if f.MinROE != 0 && stock.ROE < f.MinROE {
		return false
	}
	if key := strings.ToLower(strings.TrimSpace(f.Search)); key != "" {
		if !strings.Contains(strings.ToLower(stock.ID), key) && !strings.Contains(strings.ToLower(stock.Name), key) {
			return false
		}
	}
	return true
}

// Service syncs and serves base info.
type Service struct {
	client StockListClient
	store  BaseInfoStore
	meta   MetaUpdater
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a universe service. meta may be nil.
func NewService(client StockListClient, store BaseInfoStore, meta MetaUpdater, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		meta:   meta,
		now:    time.Now,
		log:    log.With().Str("service", "universe").Logger(),
	}
}

// Sync replaces the stored universe with the stock list matching filter and
// returns the number of stocks written. The stored universe is kept when the
// remote call fails.
func (s *Service) Sync(ctx context.Context, filter eastmoney.StockListFilter) (int, error) {
	stocks, err := s.client.FetchStockList(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch stock list: %w", err)
	}

	items := make(map[string]domain.StockBaseInfo, len(stocks))
	for _, stock := range stocks {
		items[stock.ID] = stock
	}

	if _, err := s.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear stock base info: %w", err)
	}
	if err := s.store.PutMany(ctx, items); err != nil {
		return 0, fmt.Errorf("failed to store stock base info: %w", err)
	}

	if err := s.updateMeta(ctx, func(m *domain.MetaInfo) {
		m.Touch(domain.DatasetStockBaseInfo, s.now())
	}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to record stock base info update time")
	}

	s.log.Info().Int("count", len(items)).Msg("Synced stock base info")
	return len(items), nil
}

// List returns every stored stock that passes filter, ordered by id.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.StockBaseInfo, error) {
	all, err := s.store.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock base info: %w", err)
	}

	out := make([]domain.StockBaseInfo, 0, len(all))
	for _, stock := range all {
		if filter.Matches(stock) {
			out = append(out, stock)
		}
	}
	return out, nil
}

// Page returns up to limit stocks ordered by id, starting at offset.
func (s *Service) Page(ctx context.Context, offset, limit int) ([]domain.StockBaseInfo, error) {
	return s.store.List(ctx, offset, limit)
}

// Count returns the size of the stored universe.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// GetMany returns the stored base info for ids.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]domain.StockBaseInfo, error) {
	return s.store.GetMany(ctx, ids)
}

// Snapshots returns the market snapshot of every id with stored base info.
func (s *Service) Snapshots(ctx context.Context, ids []string) (map[string]domain.Snapshot, error) {
	infos, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	out := make(map[string]domain.Snapshot, len(infos))
	for id, info := range infos {
		out[id] = info.Snapshot()
	}
	return out, nil
}

// Missing returns the ids without stored base info.
func (s *Service) Missing(ctx context.Context, ids []string) ([]string, error) {
	return s.store.Missing(ctx, ids)
}

// Clear removes the stored universe and its update time.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear stock base info: %w", err)
	}
	return s.updateMeta(ctx, func(m *domain.MetaInfo) {
		delete(m.UpdateTime, domain.DatasetStockBaseInfo)
	})
}

func (s *Service) updateMeta(ctx context.Context, fn func(*domain.MetaInfo)) error {
	if s.meta == nil {
		return nil
	}
	return s.meta.UpdateMetaInfo(ctx, fn)
}
