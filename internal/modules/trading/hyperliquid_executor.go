package trading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/rebalancer/internal/clients/hyperliquid"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
)

// AssetIndexer resolves a coin to its exchange universe index
type AssetIndexer interface {
	AssetIndex(ctx context.Context, coin string) (int, error)
}

// OrderPlacer submits an order action to the exchange
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, action hyperliquid.OrderAction) (*hyperliquid.OrderResult, error)
}

// HyperliquidExecutor turns rebalance actions into Hyperliquid limit orders
type HyperliquidExecutor struct {
	indexer AssetIndexer
	placer  OrderPlacer
	now     func() time.Time
	log     zerolog.Logger
}

// NewHyperliquidExecutor creates a new Hyperliquid executor
func NewHyperliquidExecutor(indexer AssetIndexer, placer OrderPlacer, log zerolog.Logger) *HyperliquidExecutor {
	return &HyperliquidExecutor{
		indexer: indexer,
		placer:  placer,
		now:     time.Now,
		log:     log.With().Str("service", "hyperliquid_executor").Logger(),
	}
}

// Execute places one GTC limit order sized from the action.
// Without a signing credential the order is not sent and the receipt is SIMULATED.
func (e *HyperliquidExecutor) Execute(ctx context.Context, action domain.RebalanceAction, settings domain.Settings) (domain.TradeLog, error) {
	receipt := e.baseReceipt(action)

	if !settings.HasSigningCredential() {
		receipt.Status = domain.TradeStatusSimulated
		e.log.Info().
			Str("symbol", action.Symbol).
			Str("side", string(action.Side)).
			Float64("amount", action.Amount).
			Msg("No signing credential, simulating order")
		return receipt, nil
	}

	if action.Amount <= 0 {
		return domain.TradeLog{}, fmt.Errorf("%w: non-positive amount for %s", ErrOrderRejected, action.Symbol)
	}

	index, err := e.indexer.AssetIndex(ctx, action.Symbol)
	if err != nil {
		return domain.TradeLog{}, fmt.Errorf("failed to resolve asset index for %s: %w", action.Symbol, err)
	}

	order := hyperliquid.NewOrderAction(index, action.Side.IsBuy(), action.ImpliedPrice(), action.Amount)
	result, err := e.placer.PlaceOrder(ctx, order)
	if err != nil {
		if errors.Is(err, hyperliquid.ErrRejected) {
			return domain.TradeLog{}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		return domain.TradeLog{}, fmt.Errorf("failed to place order for %s: %w", action.Symbol, err)
	}

	receipt.Status = domain.TradeStatusExecuted
	receipt.TxHash = result.Cloid
	for _, status := range result.Statuses {
		if oid := status.OrderID(); oid != 0 {
			receipt.TxHash = strconv.FormatInt(oid, 10)
			break
		}
	}

	e.log.Info().
		Str("symbol", action.Symbol).
		Str("side", string(action.Side)).
		Float64("amount", action.Amount).
		Str("tx_hash", receipt.TxHash).
		Msg("Order placed")
	return receipt, nil
}

func (e *HyperliquidExecutor) baseReceipt(action domain.RebalanceAction) domain.TradeLog {
	return domain.TradeLog{
		Timestamp: e.now(),
		Venue:     domain.VenueHyperliquid,
		Pair:      domain.VenueHyperliquid.Pair(action.Symbol),
		Side:      action.Side,
		Amount:    action.Amount,
		Price:     action.ImpliedPrice(),
		TotalUSD:  action.USDValue,
	}
}
