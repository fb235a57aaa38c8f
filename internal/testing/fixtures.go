package testing

import (
	"time"

	"github.com/aristath/rebalancer/internal/domain"
)

// FixedTime is the clock value used by deterministic tests
var FixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// FixedClock returns a clock that always reports FixedTime
func FixedClock() func() time.Time {
	return func() time.Time { return FixedTime }
}

// NewAssetFixtures returns the three-asset portfolio used across tests:
// BTC 0.5 @ $60,000, XAUT 13 @ $2,000, USDC 32,000 @ $1, targets 33/33/34.
// Total value is $88,000.
func NewAssetFixtures() []domain.Asset {
	return []domain.Asset{
		{
			ID:               "btc",
			Symbol:           "BTC",
			Name:             "Bitcoin",
			Price:            60000,
			Balance:          0.5,
			TargetAllocation: 33,
		},
		{
			ID:               "xaut",
			Symbol:           "XAUT",
			Name:             "Tether Gold",
			Price:            2000,
			Balance:          13,
			TargetAllocation: 33,
			Address:          "0x68749665FF8D2d112Fa859AA293F07a622782F38",
		},
		{
			ID:               "usdc",
			Symbol:           "USDC",
			Name:             "USD Coin",
			Price:            1,
			Balance:          32000,
			TargetAllocation: 34,
			IsStable:         true,
			Address:          "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		},
	}
}

// NewSettingsFixture returns settings with manual mode, a 5-point threshold
// and no credentials configured
func NewSettingsFixture() domain.Settings {
	return domain.Settings{
		DeltaThreshold: 5,
		Venue:          domain.VenueHyperliquid,
		AutoExecute:    false,
	}
}

// NewReceiptFixture builds an EXECUTED receipt for the action
func NewReceiptFixture(action domain.RebalanceAction, venue domain.Venue) domain.TradeLog {
	return domain.TradeLog{
		Timestamp: FixedTime,
		Venue:     venue,
		Pair:      action.Symbol + "-USD",
		Side:      action.Side,
		Amount:    action.Amount,
		Price:     action.ImpliedPrice(),
		TotalUSD:  action.USDValue,
		Status:    domain.TradeStatusExecuted,
	}
}
