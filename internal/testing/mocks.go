package testing

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/domain"
)

// TransportCall records one request made through MockTransport.
type TransportCall struct {
	URL    string
	Params url.Values
}

// TransportHandler answers one request made through MockTransport.
type TransportHandler func(rawURL string, params url.Values) (any, error)

// MockTransport is an in-process eastmoney.Transport. Every request is
// recorded and answered by the configured handler.
type MockTransport struct {
	mu       sync.RWMutex
	handler  TransportHandler
	calls    []TransportCall
	inFlight atomic.Int32
	peak     atomic.Int32
	gate     chan struct{}
}

var _ eastmoney.Transport = (*MockTransport)(nil)

// NewMockTransport creates a transport answering with handler. A nil handler
// answers every request with an empty payload.
func NewMockTransport(handler TransportHandler) *MockTransport {
	if handler == nil {
		handler = func(string, url.Values) (any, error) { return map[string]any{}, nil }
	}
	return &MockTransport{handler: handler}
}

// SetHandler replaces the handler.
func (m *MockTransport) SetHandler(handler TransportHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Hold makes every request block until the returned release func is called.
func (m *MockTransport) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Get implements eastmoney.Transport.
func (m *MockTransport) Get(ctx context.Context, rawURL string, params url.Values) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, TransportCall{URL: rawURL, Params: cloneValues(params)})
	handler := m.handler
	gate := m.gate
	m.mu.Unlock()

	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return handler(rawURL, params)
}

// Calls returns a copy of the recorded requests.
func (m *MockTransport) Calls() []TransportCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TransportCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests whose URL contains fragment.
// An empty fragment counts every request.
func (m *MockTransport) CallCount(fragment string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if strings.Contains(c.URL, fragment) {
			n++
		}
	}
	return n
}

// PeakConcurrency is the highest number of requests observed in flight.
func (m *MockTransport) PeakConcurrency() int {
	return int(m.peak.Load())
}

// Reset clears the recorded requests.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.peak.Store(0)
}

// MockMetaStore keeps meta info in memory.
type MockMetaStore struct {
	mu   sync.Mutex
	info domain.MetaInfo
	err  error
}

// NewMockMetaStore creates an empty meta store.
func NewMockMetaStore() *MockMetaStore {
	return &MockMetaStore{}
}

// SetError makes every call fail with err.
func (m *MockMetaStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// MetaInfo returns the stored meta info.
func (m *MockMetaStore) MetaInfo(context.Context) (domain.MetaInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.MetaInfo{}, m.err
	}
	return m.info, nil
}

// UpdateMetaInfo applies fn to the stored meta info.
func (m *MockMetaStore) UpdateMetaInfo(_ context.Context, fn func(*domain.MetaInfo)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	fn(&m.info)
	return nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
