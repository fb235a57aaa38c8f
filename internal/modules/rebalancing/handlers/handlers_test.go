package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticConnection bool

func (c staticConnection) Connected() bool { return bool(c) }

type handlerFixture struct {
	router   chi.Router
	orch     *rebalancing.Orchestrator
	executor *testingpkg.MockExecutor
	store    *testingpkg.MemoryTradeLogStore
	book     *portfolio.Book
	settings *testingpkg.StaticSettings
}

func setupHandler(t *testing.T, connected bool) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		executor: &testingpkg.MockExecutor{},
		store:    testingpkg.NewMemoryTradeLogStore(),
		book:     portfolio.NewBook(testingpkg.NewAssetFixtures()),
		settings: testingpkg.NewStaticSettings(testingpkg.NewSettingsFixture()),
	}
	f.orch = rebalancing.NewOrchestrator(rebalancing.OrchestratorDeps{
		Executor: f.executor,
		TradeLog: f.store,
		Book:     f.book,
	}, zerolog.Nop())

	f.router = chi.NewRouter()
	NewHandler(f.orch, f.book, f.settings, staticConnection(connected), zerolog.Nop()).RegisterRoutes(f.router)
	return f
}

// publish evaluates the fixture portfolio at threshold 3 in manual mode
// without notifier credentials, which only publishes the result
func (f *handlerFixture) publish(t *testing.T) domain.RebalanceResult {
	t.Helper()
	return f.publishAt(t, 3)
}

func (f *handlerFixture) publishAt(t *testing.T, threshold float64) domain.RebalanceResult {
	t.Helper()
	engine := rebalancing.NewEngine(rebalancing.DefaultDustThresholdUSD, testingpkg.FixedClock())
	result := engine.Evaluate(f.book.Snapshot(), threshold)
	_, err := f.orch.HandleResult(context.Background(), result, f.book.Snapshot(), f.settings.Current())
	require.NoError(t, err)
	return result
}

func TestHandleGetStatus(t *testing.T) {
	f := setupHandler(t, false)
	f.publish(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rebalance/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Data StatusResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.True(t, response.Data.Result.NeedsRebalance)
	assert.Len(t, response.Data.Result.Actions, 3)
	assert.Equal(t, rebalancing.StateIdle, response.Data.State)
	assert.Equal(t, "manual", response.Data.Mode)
	assert.Equal(t, "DISCONNECTED", response.Data.Connection)
	assert.Equal(t, 5.0, response.Data.Threshold)
}

func TestHandleExecute_NothingPublished(t *testing.T) {
	f := setupHandler(t, true)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebalance/execute", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleExecute_BelowThreshold(t *testing.T) {
	f := setupHandler(t, true)
	result := f.publishAt(t, 10)
	require.False(t, result.NeedsRebalance)
	require.Len(t, result.Actions, 3, "actions are listed below the trigger")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebalance/execute", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No rebalance needed")
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.store.Appended())
	assert.Equal(t, 0.5, f.book.Snapshot()[0].Balance)
}

func TestHandleExecute_OutlivesRequestContext(t *testing.T) {
	f := setupHandler(t, true)
	f.publish(t)

	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	f.executor.On("Execute", live, mock.Anything, mock.Anything).
		Return(domain.TradeLog{Status: domain.TradeStatusSimulated}, nil).Times(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/rebalance/execute", nil).WithContext(ctx)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	f.executor.AssertExpectations(t)
	assert.Len(t, f.store.Appended(), 3)
}

func TestHandleExecute_Success(t *testing.T) {
	f := setupHandler(t, true)
	result := f.publish(t)

	for _, action := range result.Actions {
		f.executor.On("Execute", mock.Anything, action, mock.Anything).
			Return(testingpkg.NewReceiptFixture(action, domain.VenueHyperliquid), nil).Once()
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebalance/execute", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	f.executor.AssertExpectations(t)
	assert.Len(t, f.store.Appended(), 3)
	assert.Empty(t, f.orch.CurrentResult().Actions)
	assert.InDelta(t, 14.52, f.book.Snapshot()[1].Balance, 1e-9)
}

func TestHandleExecute_BatchFailure(t *testing.T) {
	f := setupHandler(t, true)
	f.publish(t)

	f.executor.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.TradeLog{}, errors.New("order rejected")).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebalance/execute", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "order rejected")
	require.Len(t, f.store.Appended(), 1)
	assert.Equal(t, domain.TradeStatusFailed, f.store.Appended()[0].Status)
}
