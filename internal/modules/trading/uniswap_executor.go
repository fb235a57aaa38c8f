package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultUniswapRouter is the swap router used when settings leave it blank
const DefaultUniswapRouter = "0x3bFA4769FB09eefC5a80d6E87c3B9C650f7Ae48E"

// SwapRequest describes one exact-input swap against USDC
type SwapRequest struct {
	Router       string
	Testnet      bool
	Symbol       string
	TokenAddress string
	Side         domain.Side
	Amount       float64
	USDValue     float64
}

// SwapSubmitter signs and broadcasts a swap and returns its transaction hash
type SwapSubmitter interface {
	SubmitSwap(ctx context.Context, req SwapRequest) (string, error)
}

// UniswapExecutor routes actions to a Uniswap router on mainnet or testnet
type UniswapExecutor struct {
	venue     domain.Venue
	submitter SwapSubmitter
	now       func() time.Time
	log       zerolog.Logger
}

// NewUniswapExecutor creates an executor for venue. submitter may be nil.
func NewUniswapExecutor(venue domain.Venue, submitter SwapSubmitter, log zerolog.Logger) *UniswapExecutor {
	return &UniswapExecutor{
		venue:     venue,
		submitter: submitter,
		now:       time.Now,
		log:       log.With().Str("service", "uniswap_executor").Str("venue", string(venue)).Logger(),
	}
}

// Execute swaps against USDC. Without a signing credential the receipt is SIMULATED.
func (e *UniswapExecutor) Execute(ctx context.Context, action domain.RebalanceAction, settings domain.Settings) (domain.TradeLog, error) {
	receipt := domain.TradeLog{
		Timestamp: e.now(),
		Venue:     e.venue,
		Pair:      e.venue.Pair(action.Symbol),
		Side:      action.Side,
		Amount:    action.Amount,
		Price:     action.ImpliedPrice(),
		TotalUSD:  action.USDValue,
	}

	if !settings.HasSigningCredential() {
		receipt.Status = domain.TradeStatusSimulated
		e.log.Info().
			Str("symbol", action.Symbol).
			Str("side", string(action.Side)).
			Float64("amount", action.Amount).
			Msg("No signing credential, simulating swap")
		return receipt, nil
	}

	if e.submitter == nil {
		return domain.TradeLog{}, ErrSubmitterUnavailable
	}

	req := e.swapRequest(action, settings)
	txHash, err := e.submitter.SubmitSwap(ctx, req)
	if err != nil {
		return domain.TradeLog{}, fmt.Errorf("failed to submit swap for %s: %w", action.Symbol, err)
	}

	receipt.Status = domain.TradeStatusExecuted
	receipt.TxHash = txHash

	e.log.Info().
		Str("symbol", action.Symbol).
		Str("side", string(action.Side)).
		Str("router", req.Router).
		Str("tx_hash", txHash).
		Msg("Swap submitted")
	return receipt, nil
}

func (e *UniswapExecutor) swapRequest(action domain.RebalanceAction, settings domain.Settings) SwapRequest {
	router := strings.TrimSpace(settings.UniswapRouterAddress)
	if router == "" {
		router = DefaultUniswapRouter
	}

	var token string
	if strings.EqualFold(action.Symbol, "XAUT") {
		token = settings.XautTokenAddress
	}

	return SwapRequest{
		Router:       router,
		Testnet:      e.venue.IsTestnet(),
		Symbol:       action.Symbol,
		TokenAddress: token,
		Side:         action.Side,
		Amount:       action.Amount,
		USDValue:     action.USDValue,
	}
}
