package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu       sync.Mutex
	items    map[string]string
	gets     int
	puts     int
	putErr   error
	getErr   error
	lastPuts map[string]string
}

func newMemoryStore(seed map[string]string) *memoryStore {
	s := &memoryStore{items: map[string]string{}}
	for k, v := range seed {
		s.items[k] = v
	}
	return s
}

func (s *memoryStore) GetMany(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := map[string]string{}
	for _, id := range ids {
		if v, ok := s.items[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *memoryStore) PutMany(_ context.Context, items map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.lastPuts = items
	if s.putErr != nil {
		return s.putErr
	}
	for k, v := range items {
		s.items[k] = v
	}
	return nil
}

type stubFetcher struct {
	calls    atomic.Int32
	requests [][]string
	mu       sync.Mutex
	fail     map[string]error
	omit     map[string]bool
	prefix   string
}

func (f *stubFetcher) Fetch(ctx context.Context, ids []string, _ Options) []Outcome[string] {
	f.mu.Lock()
	f.requests = append(f.requests, append([]string(nil), ids...))
	f.mu.Unlock()

	all := FanOut(ctx, ids, 4, func(_ context.Context, id string) (string, error) {
		f.calls.Add(1)
		if err, ok := f.fail[id]; ok {
			return "", err
		}
		return f.prefix + id, nil
	})
	var out []Outcome[string]
	for _, o := range all {
		if !f.omit[o.ID] {
			out = append(out, o)
		}
	}
	return out
}

type mockPrerequisite struct {
	mock.Mock
}

func (m *mockPrerequisite) Missing(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestResolve_FetchesOnlyMissingAndPreservesOrder(t *testing.T) {
	store := newMemoryStore(map[string]string{"B": "cached:B"})
	fetcher := &stubFetcher{prefix: "remote:"}
	r := New[string]("test", store, nil, fetcher, zerolog.Nop())

	res, err := r.Resolve(context.Background(), []string{"A", "B", "C"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"remote:A", "cached:B", "remote:C"}, res.Items)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.FromCache)
	require.Len(t, fetcher.requests, 1)
	assert.Equal(t, []string{"A", "C"}, fetcher.requests[0])
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 1, store.puts)
}

func TestResolve_SecondCallServedFromCache(t *testing.T) {
	store := newMemoryStore(nil)
	fetcher := &stubFetcher{prefix: "remote:"}
	r := New[string]("test", store, nil, fetcher, zerolog.Nop())

	_, err := r.Resolve(context.Background(), []string{"A", "B"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	res, err := r.Resolve(context.Background(), []string{"B", "A"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load(), "no remote calls on a warm cache")
	assert.Equal(t, []string{"remote:B", "remote:A"}, res.Items)
	assert.Equal(t, 0, res.Fetched)
	assert.Equal(t, 2, res.FromCache)
	assert.Equal(t, 1, store.puts, "nothing to write on a warm cache")
}

func TestResolve_ForceRefreshRefetchesAll(t *testing.T) {
	store := newMemoryStore(map[string]string{"A": "old:A", "B": "old:B"})
	fetcher := &stubFetcher{prefix: "new:"}
	r := New[string]("test", store, nil, fetcher, zerolog.Nop())

	res, err := r.Resolve(context.Background(), []string{"A", "B"}, Options{ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"new:A", "new:B"}, res.Items)
	assert.Equal(t, 0, store.gets)
	assert.Equal(t, "new:A", store.items["A"])
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestResolve_PreconditionFailsBeforeFetching(t *testing.T) {
	store := newMemoryStore(map[string]string{"A": "cached:A"})
	fetcher := &stubFetcher{}
	prereq := &mockPrerequisite{}
	prereq.On("Missing", mock.Anything, []string{"B", "C"}).Return([]string{"C"}, nil)

	r := New[string]("test", store, prereq, fetcher, zerolog.Nop())

	res, err := r.Resolve(context.Background(), []string{"A", "B", "C"}, Options{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	var perr *PreconditionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{"C"}, perr.IDs)
	assert.Equal(t, int32(0), fetcher.calls.Load())
	prereq.AssertExpectations(t)
}

func TestResolve_PrerequisiteNotConsultedOnWarmCache(t *testing.T) {
	store := newMemoryStore(map[string]string{"A": "cached:A"})
	prereq := &mockPrerequisite{}
	r := New[string]("test", store, prereq, &stubFetcher{}, zerolog.Nop())

	_, err := r.Resolve(context.Background(), []string{"A"}, Options{})
	require.NoError(t, err)
	prereq.AssertNotCalled(t, "Missing", mock.Anything, mock.Anything)
}

func TestResolve_PerEntityFailureIsolation(t *testing.T) {
	store := newMemoryStore(nil)
	boom := errors.New("remote exploded")
	fetcher := &stubFetcher{prefix: "remote:", fail: map[string]error{"B": boom}, omit: map[string]bool{"D": true}}
	r := New[string]("test", store, nil, fetcher, zerolog.Nop())

	res, err := r.Resolve(context.Background(), []string{"A", "B", "C", "D"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"remote:A", "remote:C"}, res.Items)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "B", res.Failures[0].ID)
	assert.ErrorIs(t, res.Failures[0].Err, boom)
	assert.Equal(t, "D", res.Failures[1].ID)
	assert.Equal(t, []string{"B", "D"}, res.FailedIDs())

	assert.Equal(t, map[string]string{"A": "remote:A", "C": "remote:C"}, store.lastPuts)
}

func TestResolve_CacheWriteFailureKeepsFetchedData(t *testing.T) {
	store := newMemoryStore(nil)
	store.putErr = errors.New("disk full")
	r := New[string]("test", store, nil, &stubFetcher{prefix: "remote:"}, zerolog.Nop())

	res, err := r.Resolve(context.Background(), []string{"A"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"remote:A"}, res.Items)
}

func TestResolve_CacheReadFailure(t *testing.T) {
	store := newMemoryStore(nil)
	store.getErr = errors.New("locked")
	r := New[string]("test", store, nil, &stubFetcher{}, zerolog.Nop())

	_, err := r.Resolve(context.Background(), []string{"A"}, Options{})
	assert.ErrorContains(t, err, "locked")
}

func TestResolve_DuplicateIDsFetchedOnce(t *testing.T) {
	store := newMemoryStore(nil)
	fetcher := &stubFetcher{prefix: "remote:"}
	r := New[string]("test", store, nil, fetcher, zerolog.Nop())

	res, err := r.Resolve(context.Background(), []string{"A", "B", "A"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"remote:A", "remote:B", "remote:A"}, res.Items)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestResolve_Empty(t *testing.T) {
	store := newMemoryStore(nil)
	r := New[string]("test", store, nil, &stubFetcher{}, zerolog.Nop())

	res, err := r.Resolve(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, store.gets)
	assert.Equal(t, 0, store.puts)
}

func TestFanOut_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}

	outcomes := FanOut(context.Background(), ids, 3, func(_ context.Context, id string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return id, nil
	})

	require.Len(t, outcomes, len(ids))
	for i, o := range outcomes {
		assert.Equal(t, ids[i], o.ID)
		assert.Equal(t, ids[i], o.Value)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestFanOut_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := FanOut(ctx, []string{"A"}, 1, func(context.Context, string) (int, error) {
		return 1, nil
	})
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
}

func TestFailure_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Result[string]{
		Items:    []string{"a"},
		Failures: []Failure{{ID: "b", Err: errors.New("boom")}},
		Fetched:  1,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":["a"],"failures":[{"id":"b","error":"boom"}],"fetched":1,"fromCache":0}`, string(data))
}
