package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cycleFixture struct {
	source   *testingpkg.MockPriceSource
	executor *testingpkg.MockExecutor
	store    *testingpkg.MemoryTradeLogStore
	book     *portfolio.Book
	settings *testingpkg.StaticSettings
	orch     *rebalancing.Orchestrator
	job      *MarketCycleJob

	mu          sync.Mutex
	connections []bool
}

func newCycleFixture(t *testing.T, settings domain.Settings) *cycleFixture {
	t.Helper()
	f := &cycleFixture{
		source:   &testingpkg.MockPriceSource{},
		executor: &testingpkg.MockExecutor{},
		store:    testingpkg.NewMemoryTradeLogStore(),
		book:     portfolio.NewBook(testingpkg.NewAssetFixtures()),
		settings: testingpkg.NewStaticSettings(settings),
	}

	bus := events.NewBus()
	bus.Subscribe(events.ConnectionChanged, func(e *events.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.connections = append(f.connections, e.Data.(*events.ConnectionChangedData).Connected)
	})
	manager := events.NewManager(bus, zerolog.Nop())

	f.orch = rebalancing.NewOrchestrator(rebalancing.OrchestratorDeps{
		Executor: f.executor,
		TradeLog: f.store,
		Book:     f.book,
		Events:   manager,
	}, zerolog.Nop())

	f.job = NewMarketCycleJob(MarketCycleDeps{
		Source:   f.source,
		Book:     f.book,
		Engine:   rebalancing.NewEngine(rebalancing.DefaultDustThresholdUSD, testingpkg.FixedClock()),
		Handler:  f.orch,
		Settings: f.settings,
		Events:   manager,
	}, zerolog.Nop())
	return f
}

func (f *cycleFixture) connectionEvents() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.connections...)
}

func TestMarketCycleJob_AdoptsPricesAndPublishesResult(t *testing.T) {
	f := newCycleFixture(t, testingpkg.NewSettingsFixture())

	priced := testingpkg.NewAssetFixtures()
	priced[0].Price = 62000
	f.source.On("Fetch", mock.Anything, mock.Anything, domain.VenueHyperliquid).Return(priced, nil)

	require.NoError(t, f.job.Run())

	assert.True(t, f.job.Connected())
	assert.Equal(t, 62000.0, f.book.Snapshot()[0].Price)
	assert.Greater(t, f.orch.CurrentResult().Deviation, 0.0)
	assert.Equal(t, []bool{true}, f.connectionEvents())
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarketCycleJob_FailedFetchKeepsSnapshot(t *testing.T) {
	f := newCycleFixture(t, testingpkg.NewSettingsFixture())
	before := f.book.Snapshot()

	broken := testingpkg.NewAssetFixtures()
	broken[0].Price = 1
	f.source.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(broken, errors.New("no prices available"))

	require.NoError(t, f.job.Run())
	require.NoError(t, f.job.Run())

	assert.False(t, f.job.Connected())
	assert.Equal(t, before, f.book.Snapshot())
	assert.Equal(t, []bool{false}, f.connectionEvents(), "connection change emitted once")
}

func TestMarketCycleJob_UnusableFetchMarksDisconnected(t *testing.T) {
	f := newCycleFixture(t, testingpkg.NewSettingsFixture())

	unpriced := testingpkg.NewAssetFixtures()
	for i := range unpriced {
		unpriced[i].Price = 0
	}
	f.source.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(unpriced, nil)

	require.NoError(t, f.job.Run())
	assert.False(t, f.job.Connected())
	assert.Equal(t, 60000.0, f.book.Snapshot()[0].Price)
}

func TestMarketCycleJob_AutoExecutesAndProjectsBalances(t *testing.T) {
	settings := testingpkg.NewSettingsFixture()
	settings.AutoExecute = true
	settings.DeltaThreshold = 2
	f := newCycleFixture(t, settings)

	f.source.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(testingpkg.NewAssetFixtures(), nil)
	f.executor.On("Execute", mock.Anything, mock.Anything, settings).
		Return(domain.TradeLog{Status: domain.TradeStatusSimulated}, nil).Times(3)

	require.NoError(t, f.job.Run())

	f.executor.AssertExpectations(t)
	assert.Len(t, f.store.Appended(), 3)
	assert.Equal(t, rebalancing.StateIdle, f.orch.State())
	assert.False(t, f.orch.CurrentResult().NeedsRebalance)

	balances := f.book.Snapshot()
	assert.InDelta(t, 0.484, balances[0].Balance, 1e-9)
	assert.InDelta(t, 14.52, balances[1].Balance, 1e-9)
	assert.InDelta(t, 29920, balances[2].Balance, 1e-6)
}

func TestMarketCycleJob_ExecutorFailureIsReturned(t *testing.T) {
	settings := testingpkg.NewSettingsFixture()
	settings.AutoExecute = true
	settings.DeltaThreshold = 2
	f := newCycleFixture(t, settings)

	f.source.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(testingpkg.NewAssetFixtures(), nil)
	f.executor.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.TradeLog{}, errors.New("venue down")).Once()

	err := f.job.RunOnce(context.Background())
	require.Error(t, err)

	var batchErr *rebalancing.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 0, batchErr.Index)
	assert.Equal(t, rebalancing.StateIdle, f.orch.State())

	receipts := f.store.Appended()
	require.Len(t, receipts, 1)
	assert.Equal(t, domain.TradeStatusFailed, receipts[0].Status)
	assert.Equal(t, 0.5, f.book.Snapshot()[0].Balance, "balances untouched on failure")
}
