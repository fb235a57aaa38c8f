// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Venue identifies where rebalance orders are routed
type Venue string

const (
	VenueHyperliquid    Venue = "HYPERLIQUID"
	VenueUniswapMainnet Venue = "UNISWAP_MAINNET"
	VenueUniswapTestnet Venue = "UNISWAP_TESTNET"
)

// Venues lists every supported venue in display order
var Venues = []Venue{VenueHyperliquid, VenueUniswapMainnet, VenueUniswapTestnet}

// IsValid reports whether v is a supported venue
func (v Venue) IsValid() bool {
	for _, known := range Venues {
		if v == known {
			return true
		}
	}
	return false
}

// IsTestnet reports whether orders on v settle on a test network
func (v Venue) IsTestnet() bool {
	return strings.HasSuffix(string(v), "_TESTNET")
}

// Pair returns the trading pair label a venue uses for symbol
func (v Venue) Pair(symbol string) string {
	switch v {
	case VenueUniswapMainnet, VenueUniswapTestnet:
		return symbol + "/USDC"
	case VenueHyperliquid:
		return symbol + "-USD"
	}
	return symbol
}

// Side is the direction of a rebalance action
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SideFromString parses a side, case-insensitively
func SideFromString(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(SideBuy):
		return SideBuy, nil
	case string(SideSell):
		return SideSell, nil
	}
	return "", fmt.Errorf("invalid side: %q", s)
}

// IsBuy reports whether the side is BUY
func (s Side) IsBuy() bool {
	return s == SideBuy
}

// Asset is a holding tracked against a target allocation.
// Price is USD per unit; 0 means unpriced.
type Asset struct {
	ID               string  `json:"id"`
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	Balance          float64 `json:"balance"`
	TargetAllocation float64 `json:"target_allocation"` // percentage points
	Address          string  `json:"address,omitempty"`
	IsStable         bool    `json:"is_stable,omitempty"`
}

// Value returns price × balance
func (a Asset) Value() float64 {
	return a.Price * a.Balance
}

// CloneAssets returns a shallow copy of the slice so callers can't mutate shared snapshots
func CloneAssets(assets []Asset) []Asset {
	if assets == nil {
		return nil
	}
	out := make([]Asset, len(assets))
	copy(out, assets)
	return out
}

// RebalanceAction is a proposed unit of work produced by the engine
type RebalanceAction struct {
	AssetID   string    `json:"asset_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Amount    float64   `json:"amount"`    // token quantity
	USDValue  float64   `json:"usd_value"` // |target - current| in USD
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ImpliedPrice returns the USD price the action was sized at
func (a RebalanceAction) ImpliedPrice() float64 {
	if a.Amount <= 0 {
		return 0
	}
	return a.USDValue / a.Amount
}

// RebalanceResult is the outcome of one engine evaluation
type RebalanceResult struct {
	NeedsRebalance bool              `json:"needs_rebalance"`
	Deviation      float64           `json:"deviation"` // max absolute percentage-point drift
	Actions        []RebalanceAction `json:"actions"`
}

// NeutralResult is the cleared result shown after a batch completes
func NeutralResult() RebalanceResult {
	return RebalanceResult{Actions: []RebalanceAction{}}
}

// TradeStatus is the outcome recorded on a trade receipt
type TradeStatus string

const (
	TradeStatusExecuted  TradeStatus = "EXECUTED"
	TradeStatusFailed    TradeStatus = "FAILED"
	TradeStatusSimulated TradeStatus = "SIMULATED"
)

// IsValid reports whether s is a known status
func (s TradeStatus) IsValid() bool {
	switch s {
	case TradeStatusExecuted, TradeStatusFailed, TradeStatusSimulated:
		return true
	}
	return false
}

// TradeLog is an immutable receipt for one attempted action
type TradeLog struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Venue     Venue       `json:"exchange"`
	Pair      string      `json:"pair"`
	Side      Side        `json:"side"`
	Amount    float64     `json:"amount"`
	Price     float64     `json:"price"`
	TotalUSD  float64     `json:"total_usd"`
	Status    TradeStatus `json:"status"`
	TxHash    string      `json:"tx_hash,omitempty"`
	Error     string      `json:"error,omitempty"`
	BatchID   string      `json:"batch_id,omitempty"`
}

// Validate checks the receipt before it is appended to the log store
func (t TradeLog) Validate() error {
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid trade status: %q", t.Status)
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("invalid trade side: %q", t.Side)
	}
	if strings.TrimSpace(t.Pair) == "" {
		return fmt.Errorf("pair is required")
	}
	if t.Amount < 0 || t.TotalUSD < 0 || t.Price < 0 {
		return fmt.Errorf("amount, price and total must be non-negative")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// Settings is the strategy configuration consumed by the core.
// Credential values are never inspected by the engine; only their presence matters.
type Settings struct {
	DeltaThreshold           float64 `json:"delta_threshold"`
	Venue                    Venue   `json:"selected_exchange"`
	AutoExecute              bool    `json:"auto_execute"`
	PrivateKey               string  `json:"-"`
	HyperliquidWalletAddress string  `json:"hyperliquid_wallet_address,omitempty"`
	UniswapRouterAddress     string  `json:"uniswap_router_address,omitempty"`
	XautTokenAddress         string  `json:"xaut_token_address,omitempty"`
	TelegramBotToken         string  `json:"-"`
	TelegramChatID           string  `json:"telegram_chat_id,omitempty"`
}

// HasSigningCredential reports whether a signing key is configured
func (s Settings) HasSigningCredential() bool {
	return strings.TrimSpace(s.PrivateKey) != ""
}

// NotifierConfigured reports whether both notifier credentials are present
func (s Settings) NotifierConfigured() bool {
	return strings.TrimSpace(s.TelegramBotToken) != "" && strings.TrimSpace(s.TelegramChatID) != ""
}
