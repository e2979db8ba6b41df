package universe

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/valuescope/internal/clientdata"
	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/database"
	"github.com/aristath/valuescope/internal/domain"
	testingpkg "github.com/aristath/valuescope/internal/testing"
)

func setupService(t *testing.T, handler testingpkg.TransportHandler) (*Service, *testingpkg.MockMetaStore) {
	t.Helper()

	repo := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameCache))
	store, err := clientdata.NewStore[domain.StockBaseInfo](repo, clientdata.TableStockBaseInfo)
	require.NoError(t, err)

	client := eastmoney.NewClient(testingpkg.NewMockTransport(handler), eastmoney.Endpoints{
		Statements: testingpkg.StatementsURL,
		Datacenter: testingpkg.DatacenterURL,
		StockList:  testingpkg.StockListURL,
	}, zerolog.Nop())

	meta := testingpkg.NewMockMetaStore()
	svc := NewService(client, store, meta, zerolog.Nop())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, meta
}

func TestService_SyncReplacesUniverse(t *testing.T) {
	fixtures := testingpkg.NewStockFixtures()
	payload := testingpkg.StockListPayload(fixtures)

	svc, meta := setupService(t, func(string, url.Values) (any, error) { return payload, nil })
	ctx := context.Background()

	n, err := svc.Sync(ctx, eastmoney.StockListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(1700000000000), metaInfo(t, meta).UpdateTime[domain.DatasetStockBaseInfo])

	payload = testingpkg.StockListPayload(fixtures[:1])
	n, err = svc.Sync(ctx, eastmoney.StockListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_SyncKeepsUniverseOnRemoteFailure(t *testing.T) {
	fail := false
	payload := testingpkg.StockListPayload(testingpkg.NewStockFixtures())
	svc, _ := setupService(t, func(string, url.Values) (any, error) {
		if fail {
			return nil, &eastmoney.RemoteError{Status: 503, Message: "unavailable"}
		}
		return payload, nil
	})
	ctx := context.Background()

	_, err := svc.Sync(ctx, eastmoney.StockListFilter{})
	require.NoError(t, err)

	fail = true
	_, err = svc.Sync(ctx, eastmoney.StockListFilter{})
	var remote *eastmoney.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 503, remote.Status)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestService_ListFilters(t *testing.T) {
	payload := testingpkg.StockListPayload(testingpkg.NewStockFixtures())
	svc, _ := setupService(t, func(string, url.Values) (any, error) { return payload, nil })
	ctx := context.Background()
	_, err := svc.Sync(ctx, eastmoney.StockListFilter{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"no filter", ListFilter{}, []string{"000858.SZ", "430047.BJ", "600887.SH"}},
		{"min pe", ListFilter{MinPE: 16}, []string{"000858.SZ"}},
		{"max pe", ListFilter{MaxPE: 16}, []string{"430047.BJ", "600887.SH"}},
		{"min roe", ListFilter{MinROE: 21}, []string{"000858.SZ"}},
		{"max roe", ListFilter{MaxROE: 21}, []string{"430047.BJ", "600887.SH"}},
		{"search by id", ListFilter{Search: "600887.sh"}, []string{"600887.SH"}},
		{"search by name", ListFilter{Search: "五粮"}, []string{"000858.SZ"}},
		{"search without match", ListFilter{Search: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stocks, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(stocks))
			for _, s := range stocks {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_SnapshotsAndMissing(t *testing.T) {
	payload := testingpkg.StockListPayload(testingpkg.NewStockFixtures())
	svc, _ := setupService(t, func(string, url.Values) (any, error) { return payload, nil })
	ctx := context.Background()
	_, err := svc.Sync(ctx, eastmoney.StockListFilter{})
	require.NoError(t, err)

	snaps, err := svc.Snapshots(ctx, []string{"600887.SH", "999999.SH"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Snapshot{
		"600887.SH": {TTMPE: 15.2, TotalMarketCap: 1.8e11},
	}, snaps)

	missing, err := svc.Missing(ctx, []string{"999999.SH", "600887.SH"})
	require.NoError(t, err)
	assert.Equal(t, []string{"999999.SH"}, missing)
}

func TestService_Clear(t *testing.T) {
	payload := testingpkg.StockListPayload(testingpkg.NewStockFixtures())
	svc, meta := setupService(t, func(string, url.Values) (any, error) { return payload, nil })
	ctx := context.Background()
	_, err := svc.Sync(ctx, eastmoney.StockListFilter{})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx))

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NotContains(t, metaInfo(t, meta).UpdateTime, domain.DatasetStockBaseInfo)
}

func metaInfo(t *testing.T, meta *testingpkg.MockMetaStore) domain.MetaInfo {
	t.Helper()
	info, err := meta.MetaInfo(context.Background())
	require.NoError(t, err)
	return info
}
