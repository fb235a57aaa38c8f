package domain

import "context"

// PriceSource fetches best-available USD prices.
// Assets it cannot price are returned unchanged; partial failures never fail the batch.
type PriceSource interface {
	Fetch(ctx context.Context, assets []Asset, venue Venue) ([]Asset, error)
}

// Executor submits one rebalance action to a venue and returns its receipt.
// Transport or validation failures are returned as errors.
type Executor interface {
	Execute(ctx context.Context, action RebalanceAction, settings Settings) (TradeLog, error)
}

// TradeLogStore is the append-only receipt store
type TradeLogStore interface {
	Append(ctx context.Context, log TradeLog) error
	// ListAll returns every receipt, newest first
	ListAll(ctx context.Context) ([]TradeLog, error)
}

// Notifier delivers an outbound message. It reports failure as false and never panics or errors.
type Notifier interface {
	Send(ctx context.Context, message string) bool
}

// SettingsProvider returns the current strategy settings
type SettingsProvider interface {
	Current() Settings
}
