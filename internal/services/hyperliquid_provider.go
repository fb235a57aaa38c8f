// Package services provides the price service and notifier adapters that sit
// between the external clients and the rebalancing core.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/clients/hyperliquid"
)

// MidsReader fetches mids over HTTP
type MidsReader interface {
	AllMids(ctx context.Context) (map[string]float64, error)
}

// MidsStreamReader exposes streamed mids when they are fresh
type MidsStreamReader interface {
	Fresh(maxAge time.Duration) (map[string]float64, bool)
}

// HyperliquidProvider prices symbols from Hyperliquid mainnet mids.
// A fresh websocket snapshot is preferred over an HTTP round trip.
type HyperliquidProvider struct {
	info         MidsReader
	stream       MidsStreamReader
	streamMaxAge time.Duration
}

// NewHyperliquidProvider creates the provider. stream may be nil.
func NewHyperliquidProvider(info MidsReader, stream MidsStreamReader, streamMaxAge time.Duration) *HyperliquidProvider {
	return &HyperliquidProvider{info: info, stream: stream, streamMaxAge: streamMaxAge}
}

// Name implements marketdata.Provider
func (p *HyperliquidProvider) Name() string { return "hyperliquid" }

// Quotes implements marketdata.Provider
func (p *HyperliquidProvider) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	var mids map[string]float64
	if p.stream != nil {
		if fresh, ok := p.stream.Fresh(p.streamMaxAge); ok {
			mids = fresh
		}
	}
	if mids == nil {
		fetched, err := p.info.AllMids(ctx)
		if err != nil {
			return nil, err
		}
		mids = fetched
	}

	quotes := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if price, ok := mids[strings.ToUpper(symbol)]; ok && price > 0 {
			quotes[symbol] = price
		}
	}
	return quotes, nil
}

var _ MidsReader = (*hyperliquid.InfoClient)(nil)
var _ MidsStreamReader = (*hyperliquid.MidsStream)(nil)
