package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/modules/leading"
	"github.com/aristath/valuescope/internal/modules/universe"
	"github.com/aristath/valuescope/internal/reconcile"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Resolve(ctx context.Context, ids []string, opts reconcile.Options) (*reconcile.Result[domain.StockWithLeadingIndicators], error) {
	args := m.Called(ctx, ids, opts)
	result, _ := args.Get(0).(*reconcile.Result[domain.StockWithLeadingIndicators])
	return result, args.Error(1)
}

func (m *mockService) List(ctx context.Context, offset, limit int) ([]domain.StockWithLeadingIndicators, int, error) {
	args := m.Called(ctx, offset, limit)
	items, _ := args.Get(0).([]domain.StockWithLeadingIndicators)
	return items, args.Int(1), args.Error(2)
}

func (m *mockService) Sync(ctx context.Context, opts leading.SyncOptions) (*leading.SyncResult, error) {
	args := m.Called(ctx, opts)
	result, _ := args.Get(0).(*leading.SyncResult)
	return result, args.Error(1)
}

func (m *mockService) Stop() bool    { return m.Called().Bool(0) }
func (m *mockService) Running() bool { return m.Called().Bool(0) }

func (m *mockService) Status(ctx context.Context) (leading.SyncStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(leading.SyncStatus), args.Error(1)
}

func (m *mockService) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func setupRouter(svc Service) *chi.Mux {
	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestResolveRoute(t *testing.T) {
	svc := &mockService{}
	svc.On("Resolve", mock.Anything, []string{"600887.SH", "000858.SZ"}, reconcile.Options{ForceRefresh: true}).
		Return(&reconcile.Result[domain.StockWithLeadingIndicators]{
			Items:    []domain.StockWithLeadingIndicators{{ID: "600887.SH", Name: "伊利股份"}},
			Failures: []reconcile.Failure{{ID: "000858.SZ", Err: &eastmoney.RemoteError{Status: 502, Message: "bad gateway"}}},
			Fetched:  1,
		}, nil)

	rec := serve(setupRouter(svc), "POST", "/indicators/resolve", `{"ids":["600887.SH","000858.SZ"],"forceRefresh":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"id":"600887.SH"`)
	assert.Contains(t, rec.Body.String(), `"failures":[{"id":"000858.SZ","error":"eastmoney: status 502: bad gateway"}]`)
	svc.AssertExpectations(t)
}

func TestResolveRoute_Precondition(t *testing.T) {
	svc := &mockService{}
	svc.On("Resolve", mock.Anything, []string{"999999.SH"}, reconcile.Options{}).
		Return(nil, &reconcile.PreconditionError{IDs: []string{"999999.SH"}})

	rec := serve(setupRouter(svc), "POST", "/indicators/resolve", `{"ids":["999999.SH"]}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ids":["999999.SH"]`)

	rec = serve(setupRouter(svc), "POST", "/indicators/resolve", `[`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRoute(t *testing.T) {
	svc := &mockService{}
	svc.On("List", mock.Anything, 10, 5).Return([]domain.StockWithLeadingIndicators{{ID: "600887.SH"}}, 42, nil)

	rec := serve(setupRouter(svc), "GET", "/indicators/?offset=10&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":42`)
}

func TestSyncRoute_Wait(t *testing.T) {
	svc := &mockService{}
	svc.On("Sync", mock.Anything, leading.SyncOptions{FromPage: 3}).
		Return(&leading.SyncResult{Pages: 2, Fetched: 10, NextPage: 5, Complete: true}, nil).Once()
	svc.On("Sync", mock.Anything, leading.SyncOptions{}).Return(nil, universe.ErrEmptyUniverse).Once()
	svc.On("Sync", mock.Anything, leading.SyncOptions{FromPage: 99}).Return(nil, leading.ErrInvalidPage).Once()
	router := setupRouter(svc)

	rec := serve(router, "POST", "/indicators/sync?wait=true", `{"fromPage":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pages":2,"fetched":10,"stopped":false,"nextPage":5,"complete":true}`, rec.Body.String())

	rec = serve(router, "POST", "/indicators/sync?wait=true", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(router, "POST", "/indicators/sync?wait=true", `{"fromPage":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncRoute_Background(t *testing.T) {
	svc := &mockService{}
	done := make(chan struct{})
	svc.On("Running").Return(false).Once()
	svc.On("Sync", mock.Anything, leading.SyncOptions{}).
		Run(func(mock.Arguments) { close(done) }).
		Return(&leading.SyncResult{Complete: true}, nil).Once()

	rec := serve(setupRouter(svc), "POST", "/indicators/sync", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background sync did not start")
	}
}

func TestSyncRoute_AlreadyRunning(t *testing.T) {
	svc := &mockService{}
	svc.On("Running").Return(true)

	rec := serve(setupRouter(svc), "POST", "/indicators/sync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
}

func TestStopStatusAndClearRoutes(t *testing.T) {
	svc := &mockService{}
	page := 7
	svc.On("Stop").Return(true)
	svc.On("Status", mock.Anything).Return(leading.SyncStatus{Running: true, Checkpoint: &page, TotalPages: 50}, nil)
	svc.On("Clear", mock.Anything).Return(nil)
	router := setupRouter(svc)

	rec := serve(router, "POST", "/indicators/sync/stop", "")
	assert.JSONEq(t, `{"stopping":true}`, rec.Body.String())

	rec = serve(router, "GET", "/indicators/sync", "")
	assert.JSONEq(t, `{"running":true,"checkpoint":7,"totalPages":50}`, rec.Body.String())

	rec = serve(router, "DELETE", "/indicators/", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
