// Package leading retrieves and caches the annual leading indicators of each
// stock, and keeps the whole universe fresh through a paged sync.
package leading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/reconcile"
)

// ErrNoBaseInfo is returned for an id whose base info disappeared between
// the prerequisite check and the fetch.
var ErrNoBaseInfo = errors.New("no base info for stock")

// IndicatorClient fetches the leading indicator rows of one stock.
type IndicatorClient interface {
	FetchLeadingIndicators(ctx context.Context, code string, exchange domain.Exchange) (domain.Series, error)
}

// BaseInfoSource looks up base info by id.
type BaseInfoSource interface {
	GetMany(ctx context.Context, ids []string) (map[string]domain.StockBaseInfo, error)
}

// Fetcher implements reconcile.Fetcher for leading indicators.
type Fetcher struct {
	client      IndicatorClient
	baseInfo    BaseInfoSource
	concurrency int
	now         func() time.Time
}

// NewFetcher creates a fetcher issuing at most concurrency requests at once.
func NewFetcher(client IndicatorClient, baseInfo BaseInfoSource, concurrency int) *Fetcher {
	return &Fetcher{
		client:      client,
		baseInfo:    baseInfo,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Fetch implements reconcile.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, ids []string, _ reconcile.Options) []reconcile.Outcome[domain.StockWithLeadingIndicators] {
	infos, err := f.baseInfo.GetMany(ctx, ids)
	if err != nil {
		outcomes := make([]reconcile.Outcome[domain.StockWithLeadingIndicators], len(ids))
		for i, id := range ids {
			outcomes[i] = reconcile.Outcome[domain.StockWithLeadingIndicators]{ID: id, Err: fmt.Errorf("failed to load base info: %w", err)}
		}
		return outcomes
	}

	return reconcile.FanOut(ctx, ids, f.concurrency, func(ctx context.Context, id string) (domain.StockWithLeadingIndicators, error) {
		info, ok := infos[id]
		if !ok {
			return domain.StockWithLeadingIndicators{}, fmt.Errorf("%s: %w", id, ErrNoBaseInfo)
		}
		return f.FetchStock(ctx, info)
	})
}

// FetchStock fetches the leading indicators of one stock.
func (f *Fetcher) FetchStock(ctx context.Context, info domain.StockBaseInfo) (domain.StockWithLeadingIndicators, error) {
	rows, err := f.client.FetchLeadingIndicators(ctx, info.Code, info.Exchange)
	if err != nil {
		return domain.StockWithLeadingIndicators{}, fmt.Errorf("failed to fetch leading indicators for %s: %w", info.ID, err)
	}

	return domain.StockWithLeadingIndicators{
		ID:         info.ID,
		Code:       info.Code,
		Exchange:   info.Exchange,
		Name:       info.Name,
		Indicators: rows,
		UpdateTime: f.now().UnixMilli(),
	}, nil
}
