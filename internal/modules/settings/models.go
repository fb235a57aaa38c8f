package settings

import (
	"errors"

	"github.com/aristath/rebalancer/internal/domain"
)

// ErrInvalidSettings is returned when an update would leave the strategy unusable
var ErrInvalidSettings = errors.New("invalid settings")

// Setting keys stored in config.db
const (
	KeyDeltaThreshold           = "delta_threshold"
	KeyVenue                    = "venue"
	KeyAutoExecute              = "auto_execute"
	KeyPrivateKey               = "private_key"
	KeyHyperliquidWalletAddress = "hyperliquid_wallet_address"
	KeyUniswapRouterAddress     = "uniswap_router_address"
	KeyXautTokenAddress         = "xaut_token_address"
	KeyTelegramBotToken         = "telegram_bot_token"
	KeyTelegramChatID           = "telegram_chat_id"
)

// Default values used when a key has never been written
const (
	DefaultDeltaThreshold       = 5.0
	DefaultVenue                = domain.VenueHyperliquid
	DefaultAutoExecute          = false
	DefaultUniswapRouterAddress = "0x3bFA4769FB09eefC5a80d6E87c3B9C650f7Ae48E"
	DefaultXautTokenAddress     = "0x68749665FF8D2d112Fa859AA293F07a622782F38"
)

// SettingDescriptions documents keys when they are seeded
var SettingDescriptions = map[string]string{
	KeyDeltaThreshold:           "Max single-asset drift in percentage points before a rebalance triggers",
	KeyVenue:                    "Execution venue: HYPERLIQUID, UNISWAP_MAINNET or UNISWAP_TESTNET",
	KeyAutoExecute:              "Execute batches automatically instead of sending manual signals",
	KeyPrivateKey:               "Signing credential; receipts are simulated when empty",
	KeyHyperliquidWalletAddress: "Hyperliquid account address",
	KeyUniswapRouterAddress:     "Uniswap router contract",
	KeyXautTokenAddress:         "XAUT token contract",
	KeyTelegramBotToken:         "Telegram bot token",
	KeyTelegramChatID:           "Telegram chat id",
}

// Defaults returns the settings used on a fresh install
func Defaults() domain.Settings {
	return domain.Settings{
		DeltaThreshold:       DefaultDeltaThreshold,
		Venue:                DefaultVenue,
		AutoExecute:          DefaultAutoExecute,
		UniswapRouterAddress: DefaultUniswapRouterAddress,
		XautTokenAddress:     DefaultXautTokenAddress,
	}
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
// Empty strings clear credentials.
type SettingsUpdate struct {
	DeltaThreshold           *float64 `json:"delta_threshold,omitempty"`
	Venue                    *string  `json:"venue,omitempty"`
	AutoExecute              *bool    `json:"auto_execute,omitempty"`
	PrivateKey               *string  `json:"private_key,omitempty"`
	HyperliquidWalletAddress *string  `json:"hyperliquid_wallet_address,omitempty"`
	UniswapRouterAddress     *string  `json:"uniswap_router_address,omitempty"`
	XautTokenAddress         *string  `json:"xaut_token_address,omitempty"`
	TelegramBotToken         *string  `json:"telegram_bot_token,omitempty"`
	TelegramChatID           *string  `json:"telegram_chat_id,omitempty"`
}

// SettingsView is the API representation. Credentials are reported only as presence flags.
type SettingsView struct {
	DeltaThreshold           float64 `json:"delta_threshold"`
	Venue                    string  `json:"venue"`
	AutoExecute              bool    `json:"auto_execute"`
	HasPrivateKey            bool    `json:"has_private_key"`
	HyperliquidWalletAddress string  `json:"hyperliquid_wallet_address"`
	UniswapRouterAddress     string  `json:"uniswap_router_address"`
	XautTokenAddress         string  `json:"xaut_token_address"`
	HasTelegramBotToken      bool    `json:"has_telegram_bot_token"`
	TelegramChatID           string  `json:"telegram_chat_id"`
	NotifierConfigured       bool    `json:"notifier_configured"`
}

// NewSettingsView builds the redacted view of s
func NewSettingsView(s domain.Settings) SettingsView {
	return SettingsView{
		DeltaThreshold:           s.DeltaThreshold,
		Venue:                    string(s.Venue),
		AutoExecute:              s.AutoExecute,
		HasPrivateKey:            s.HasSigningCredential(),
		HyperliquidWalletAddress: s.HyperliquidWalletAddress,
		UniswapRouterAddress:     s.UniswapRouterAddress,
		XautTokenAddress:         s.XautTokenAddress,
		HasTelegramBotToken:      s.TelegramBotToken != "",
		TelegramChatID:           s.TelegramChatID,
		NotifierConfigured:       s.NotifierConfigured(),
	}
}
