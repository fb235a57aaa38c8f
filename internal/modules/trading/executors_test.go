package trading

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aristath/rebalancer/internal/clients/hyperliquid"
	"github.com/aristath/rebalancer/internal/domain"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	index map[string]int
	calls int
}

func (f *fakeIndexer) AssetIndex(_ context.Context, coin string) (int, error) {
	f.calls++
	idx, ok := f.index[coin]
	if !ok {
		return 0, fmt.Errorf("coin %s not listed", coin)
	}
	return idx, nil
}

type fakePlacer struct {
	orders []hyperliquid.OrderAction
	result *hyperliquid.OrderResult
	err    error
}

func (f *fakePlacer) PlaceOrder(_ context.Context, action hyperliquid.OrderAction) (*hyperliquid.OrderResult, error) {
	f.orders = append(f.orders, action)
	return f.result, f.err
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitSwap(ctx context.Context, req SwapRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func xautBuy() domain.RebalanceAction {
	return domain.RebalanceAction{
		AssetID:  "xaut",
		Symbol:   "XAUT",
		Side:     domain.SideBuy,
		Amount:   1.52,
		USDValue: 3040,
	}
}

func signedSettings(venue domain.Venue) domain.Settings {
	s := testingpkg.NewSettingsFixture()
	s.Venue = venue
	s.PrivateKey = "0xabc"
	s.XautTokenAddress = "0x68749665FF8D2d112Fa859AA293F07a622782F38"
	return s
}

func TestHyperliquidExecutor_SimulatesWithoutCredential(t *testing.T) {
	indexer := &fakeIndexer{}
	placer := &fakePlacer{}
	exec := NewHyperliquidExecutor(indexer, placer, zerolog.Nop())
	exec.now = testingpkg.FixedClock()

	receipt, err := exec.Execute(context.Background(), xautBuy(), testingpkg.NewSettingsFixture())
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStatusSimulated, receipt.Status)
	assert.Equal(t, "XAUT-USD", receipt.Pair)
	assert.Equal(t, domain.VenueHyperliquid, receipt.Venue)
	assert.InDelta(t, 2000, receipt.Price, 1e-9)
	assert.Equal(t, 3040.0, receipt.TotalUSD)
	assert.Empty(t, receipt.TxHash)
	assert.Zero(t, indexer.calls)
	assert.Empty(t, placer.orders)
}

func TestHyperliquidExecutor_PlacesOrder(t *testing.T) {
	indexer := &fakeIndexer{index: map[string]int{"XAUT": 4}}
	placer := &fakePlacer{result: &hyperliquid.OrderResult{
		Cloid:    "0xfeed",
		Statuses: []hyperliquid.OrderStatus{{}},
	}}
	exec := NewHyperliquidExecutor(indexer, placer, zerolog.Nop())
	exec.now = testingpkg.FixedClock()

	receipt, err := exec.Execute(context.Background(), xautBuy(), signedSettings(domain.VenueHyperliquid))
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStatusExecuted, receipt.Status)
	assert.Equal(t, "0xfeed", receipt.TxHash)
	require.Len(t, placer.orders, 1)
	order := placer.orders[0].Orders[0]
	assert.Equal(t, 4, order.Asset)
	assert.True(t, order.IsBuy)
	assert.Equal(t, "2000.0000", order.LimitPx)
	assert.Equal(t, "1.5200", order.Size)
	assert.Equal(t, "Gtc", order.OrderType.Limit.Tif)
}

func TestHyperliquidExecutor_Failures(t *testing.T) {
	t.Run("unknown coin", func(t *testing.T) {
		exec := NewHyperliquidExecutor(&fakeIndexer{}, &fakePlacer{}, zerolog.Nop())
		_, err := exec.Execute(context.Background(), xautBuy(), signedSettings(domain.VenueHyperliquid))
		assert.Error(t, err)
	})

	t.Run("venue rejection", func(t *testing.T) {
		placer := &fakePlacer{err: fmt.Errorf("%w: Invalid signature", hyperliquid.ErrRejected)}
		exec := NewHyperliquidExecutor(&fakeIndexer{index: map[string]int{"XAUT": 1}}, placer, zerolog.Nop())
		_, err := exec.Execute(context.Background(), xautBuy(), signedSettings(domain.VenueHyperliquid))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOrderRejected))
	})

	t.Run("transport error", func(t *testing.T) {
		transport := errors.New("connection reset")
		placer := &fakePlacer{err: transport}
		exec := NewHyperliquidExecutor(&fakeIndexer{index: map[string]int{"XAUT": 1}}, placer, zerolog.Nop())
		_, err := exec.Execute(context.Background(), xautBuy(), signedSettings(domain.VenueHyperliquid))
		require.Error(t, err)
		assert.True(t, errors.Is(err, transport))
		assert.False(t, errors.Is(err, ErrOrderRejected))
	})
}

func TestUniswapExecutor(t *testing.T) {
	t.Run("simulated without credential", func(t *testing.T) {
		exec := NewUniswapExecutor(domain.VenueUniswapTestnet, nil, zerolog.Nop())
		settings := testingpkg.NewSettingsFixture()
		settings.Venue = domain.VenueUniswapTestnet

		receipt, err := exec.Execute(context.Background(), xautBuy(), settings)
		require.NoError(t, err)
		assert.Equal(t, domain.TradeStatusSimulated, receipt.Status)
		assert.Equal(t, "XAUT/USDC", receipt.Pair)
		assert.Equal(t, domain.VenueUniswapTestnet, receipt.Venue)
	})

	t.Run("credential without submitter", func(t *testing.T) {
		exec := NewUniswapExecutor(domain.VenueUniswapMainnet, nil, zerolog.Nop())
		_, err := exec.Execute(context.Background(), xautBuy(), signedSettings(domain.VenueUniswapMainnet))
		assert.ErrorIs(t, err, ErrSubmitterUnavailable)
	})

	t.Run("submits with default router", func(t *testing.T) {
		submitter := &mockSubmitter{}
		submitter.On("SubmitSwap", mock.Anything, mock.MatchedBy(func(req SwapRequest) bool {
			return req.Router == DefaultUniswapRouter &&
				req.Testnet &&
				req.TokenAddress == "0x68749665FF8D2d112Fa859AA293F07a622782F38" &&
				req.Side == domain.SideBuy
		})).Return("0xtx", nil).Once()

		exec := NewUniswapExecutor(domain.VenueUniswapTestnet, submitter, zerolog.Nop())
		receipt, err := exec.Execute(context.Background(), xautBuy(), signedSettings(domain.VenueUniswapTestnet))
		require.NoError(t, err)
		assert.Equal(t, domain.TradeStatusExecuted, receipt.Status)
		assert.Equal(t, "0xtx", receipt.TxHash)
		submitter.AssertExpectations(t)
	})

	t.Run("submitter error propagates", func(t *testing.T) {
		submitter := &mockSubmitter{}
		submitter.On("SubmitSwap", mock.Anything, mock.Anything).Return("", errors.New("reverted"))

		exec := NewUniswapExecutor(domain.VenueUniswapMainnet, submitter, zerolog.Nop())
		settings := signedSettings(domain.VenueUniswapMainnet)
		settings.UniswapRouterAddress = "0xrouter"
		_, err := exec.Execute(context.Background(), xautBuy(), settings)
		assert.ErrorContains(t, err, "reverted")
	})
}

func TestRouter_DispatchesByVenue(t *testing.T) {
	router := NewRouter(zerolog.Nop())
	hl := &testingpkg.MockExecutor{}
	router.Register(domain.VenueHyperliquid, hl)
	router.Register(domain.VenueUniswapTestnet, NewUniswapExecutor(domain.VenueUniswapTestnet, nil, zerolog.Nop()))

	settings := testingpkg.NewSettingsFixture()
	action := xautBuy()
	hl.On("Execute", mock.Anything, action, settings).
		Return(testingpkg.NewReceiptFixture(action, domain.VenueHyperliquid), nil).Once()

	receipt, err := router.Execute(context.Background(), action, settings)
	require.NoError(t, err)
	assert.Equal(t, domain.VenueHyperliquid, receipt.Venue)
	hl.AssertExpectations(t)

	settings.Venue = domain.VenueUniswapTestnet
	receipt, err = router.Execute(context.Background(), action, settings)
	require.NoError(t, err)
	assert.Equal(t, "XAUT/USDC", receipt.Pair)

	settings.Venue = domain.VenueUniswapMainnet
	_, err = router.Execute(context.Background(), action, settings)
	assert.ErrorIs(t, err, ErrUnknownVenue)

	assert.Equal(t, []domain.Venue{domain.VenueHyperliquid, domain.VenueUniswapTestnet}, router.Venues())
}
