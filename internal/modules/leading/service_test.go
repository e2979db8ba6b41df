package leading

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/valuescope/internal/clientdata"
	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/database"
	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/modules/universe"
	"github.com/aristath/valuescope/internal/reconcile"
	testingpkg "github.com/aristath/valuescope/internal/testing"
)

type fixture struct {
	service   *Service
	universe  *universe.Service
	transport *testingpkg.MockTransport
	meta      *testingpkg.MockMetaStore
	failing   map[string]bool
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{failing: map[string]bool{}}
	stocks := testingpkg.NewStockFixtures()
	f.transport = testingpkg.NewMockTransport(func(rawURL string, params url.Values) (any, error) {
		switch {
		case strings.HasPrefix(rawURL, testingpkg.StockListURL):
			return testingpkg.StockListPayload(stocks), nil
		case strings.HasPrefix(rawURL, testingpkg.DatacenterURL):
			id := testingpkg.SecucodeFromParams(params)
			if f.failing[id] {
				return nil, &eastmoney.RemoteError{Status: 502, Message: "bad gateway"}
			}
			return testingpkg.DatacenterPayload(testingpkg.NewLeadingIndicatorRows(id, 2023, 3)), nil
		}
		return nil, errors.New("unexpected url " + rawURL)
	})

	client := eastmoney.NewClient(f.transport, eastmoney.Endpoints{
		Statements: testingpkg.StatementsURL,
		Datacenter: testingpkg.DatacenterURL,
		StockList:  testingpkg.StockListURL,
	}, zerolog.Nop())

	repo := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameCache))
	baseStore, err := clientdata.NewStore[domain.StockBaseInfo](repo, clientdata.TableStockBaseInfo)
	require.NoError(t, err)
	indicatorStore, err := clientdata.NewStore[domain.StockWithLeadingIndicators](repo, clientdata.TableLeadingIndicators)
	require.NoError(t, err)

	f.meta = testingpkg.NewMockMetaStore()
	f.universe = universe.NewService(client, baseStore, f.meta, zerolog.Nop())
	f.service = NewService(client, indicatorStore, f.universe, f.meta, cfg, zerolog.Nop())
	f.service.now = func() time.Time { return time.UnixMilli(1700000000000) }
	f.service.fetcher.now = f.service.now
	return f
}

func (f *fixture) syncUniverse(t *testing.T) {
	t.Helper()
	_, err := f.universe.Sync(context.Background(), eastmoney.StockListFilter{})
	require.NoError(t, err)
	f.transport.Reset()
}

func (f *fixture) metaInfo(t *testing.T) domain.MetaInfo {
	t.Helper()
	info, err := f.meta.MetaInfo(context.Background())
	require.NoError(t, err)
	return info
}

func ids(items []domain.StockWithLeadingIndicators) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestResolve_RequiresBaseInfo(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.service.Resolve(context.Background(), []string{"600887.SH"}, reconcile.Options{})

	var precondition *reconcile.PreconditionError
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, []string{"600887.SH"}, precondition.IDs)
	assert.ErrorIs(t, err, reconcile.ErrPreconditionFailed)
	assert.Zero(t, f.transport.CallCount(testingpkg.DatacenterURL))
}

func TestResolve_FetchesOnceAndKeepsOrder(t *testing.T) {
	f := newFixture(t, Config{})
	f.syncUniverse(t)
	ctx := context.Background()
	request := []string{"600887.SH", "430047.BJ", "000858.SZ"}

	result, err := f.service.Resolve(ctx, request, reconcile.Options{})
	require.NoError(t, err)
	assert.Equal(t, request, ids(result.Items))
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, f.transport.CallCount(testingpkg.DatacenterURL))

	first := result.Items[0]
	assert.Equal(t, "伊利股份", first.Name)
	assert.Equal(t, domain.ExchangeShanghai, first.Exchange)
	assert.Equal(t, int64(1700000000000), first.UpdateTime)
	require.Len(t, first.Indicators, 3)
	assert.Equal(t, 2023, first.Indicators[0].Year())

	f.transport.Reset()
	result, err = f.service.Resolve(ctx, request, reconcile.Options{})
	require.NoError(t, err)
	assert.Equal(t, request, ids(result.Items))
	assert.Equal(t, 3, result.FromCache)
	assert.Zero(t, f.transport.CallCount(""))

	result, err = f.service.Resolve(ctx, request, reconcile.Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, f.transport.CallCount(testingpkg.DatacenterURL))
}

func TestResolve_IsolatesFailures(t *testing.T) {
	f := newFixture(t, Config{})
	f.syncUniverse(t)
	f.failing["000858.SZ"] = true

	result, err := f.service.Resolve(context.Background(), []string{"600887.SH", "000858.SZ"}, reconcile.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"600887.SH"}, ids(result.Items))
	assert.Equal(t, []string{"000858.SZ"}, result.FailedIDs())

	var remote *eastmoney.RemoteError
	require.True(t, errors.As(result.Failures[0].Err, &remote))
	assert.Equal(t, 502, remote.Status)
}

func TestSync_FetchesEveryPage(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 2})
	f.syncUniverse(t)
	ctx := context.Background()

	result, err := f.service.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.Fetched)
	assert.True(t, result.Complete)
	assert.False(t, result.Stopped)
	assert.Equal(t, 3, f.transport.CallCount(testingpkg.DatacenterURL))

	items, total, err := f.service.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 3)

	meta := f.metaInfo(t)
	assert.Nil(t, meta.SyncPage)
	assert.Equal(t, int64(1700000000000), meta.UpdateTime[domain.DatasetLeadingIndicators])
}

func TestSync_RecordsFailuresAndContinues(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 3})
	f.syncUniverse(t)
	f.failing["430047.BJ"] = true

	result, err := f.service.Sync(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, []string{"430047.BJ"}, result.Failed)
}

func TestSync_EmptyUniverse(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.service.Sync(context.Background(), SyncOptions{})
	assert.ErrorIs(t, err, universe.ErrEmptyUniverse)
	assert.False(t, f.service.Running())
}

func TestSync_RejectsInvalidStartPage(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 2})
	f.syncUniverse(t)

	_, err := f.service.Sync(context.Background(), SyncOptions{FromPage: 2})
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestSync_StopAndConcurrentRun(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 3})
	f.syncUniverse(t)
	ctx := context.Background()

	assert.False(t, f.service.Stop(), "nothing to stop yet")

	release := f.transport.Hold()
	done := make(chan *SyncResult, 1)
	go func() {
		result, err := f.service.Sync(ctx, SyncOptions{})
		assert.NoError(t, err)
		done <- result
	}()

	require.Eventually(t, func() bool {
		return f.transport.CallCount(testingpkg.DatacenterURL) > 0
	}, time.Second, 5*time.Millisecond)

	_, err := f.service.Sync(ctx, SyncOptions{})
	assert.ErrorIs(t, err, ErrSyncInProgress)

	assert.True(t, f.service.Stop())
	release()

	var result *SyncResult
	select {
	case result = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not finish")
	}

	assert.True(t, result.Stopped)
	assert.False(t, result.Complete)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 1, result.NextPage)
	assert.Equal(t, 1, f.transport.CallCount(testingpkg.DatacenterURL), "in-flight page completes, no new page starts")

	meta := f.metaInfo(t)
	require.NotNil(t, meta.SyncPage)
	assert.Equal(t, 1, *meta.SyncPage)
	require.NotNil(t, meta.SyncPages)
	assert.Equal(t, 3, *meta.SyncPages)

	status, err := f.service.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 3, status.TotalPages)
}

func TestResume_ContinuesFromCheckpoint(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 3})
	f.syncUniverse(t)
	ctx := context.Background()

	page := 2
	require.NoError(t, f.meta.UpdateMetaInfo(ctx, func(m *domain.MetaInfo) { m.SyncPage = &page }))

	result, err := f.service.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pages)
	assert.True(t, result.Complete)

	items, total, err := f.service.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "600887.SH", items[0].ID, "last page holds the last id")
}

func TestResume_UsesPageCountOfStoppedRun(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 2})
	f.syncUniverse(t)
	ctx := context.Background()

	release := f.transport.Hold()
	done := make(chan *SyncResult, 1)
	go func() {
		result, err := f.service.Sync(ctx, SyncOptions{Pages: 3})
		assert.NoError(t, err)
		done <- result
	}()

	require.Eventually(t, func() bool {
		return f.transport.CallCount(testingpkg.DatacenterURL) > 0
	}, time.Second, 5*time.Millisecond)

	status, err := f.service.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 3, status.TotalPages, "page count of the running sync")

	require.True(t, f.service.Stop())
	release()

	select {
	case result := <-done:
		require.True(t, result.Stopped)
		assert.Equal(t, 1, result.NextPage)
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not finish")
	}

	status, err = f.service.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalPages, "page count of the saved checkpoint")

	result, err := f.service.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, result.Fetched)

	_, total, err := f.service.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total, "no stock skipped between the two runs")

	meta := f.metaInfo(t)
	assert.Nil(t, meta.SyncPage)
	assert.Nil(t, meta.SyncPages)

	status, err = f.service.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalPages)
}

type countingStore struct {
	Store
	puts int
}

func (c *countingStore) PutMany(ctx context.Context, items map[string]domain.StockWithLeadingIndicators) error {
	c.puts++
	return c.Store.PutMany(ctx, items)
}

func TestSync_SkipsWriteForFullyFailedPage(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 3})
	f.syncUniverse(t)
	f.failing["430047.BJ"] = true

	store := &countingStore{Store: f.service.store}
	f.service.store = store

	result, err := f.service.Sync(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, []string{"430047.BJ"}, result.Failed)
	assert.Equal(t, 2, store.puts)
}

func TestRefreshJob_Run(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 1})
	f.syncUniverse(t)

	job := NewRefreshJob(f.service, time.Minute, zerolog.Nop())
	assert.Equal(t, "leading_indicator_refresh", job.Name())
	require.NoError(t, job.Run())

	_, total, err := f.service.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestClear(t *testing.T) {
	f := newFixture(t, Config{SyncPages: 1})
	f.syncUniverse(t)
	ctx := context.Background()

	_, err := f.service.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	require.NoError(t, f.service.Clear(ctx))

	_, total, err := f.service.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotContains(t, f.metaInfo(t).UpdateTime, domain.DatasetLeadingIndicators)
}
