package marketdata

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const defaultCoinCapURL = "https://api.coincap.io"

// coinCapSlugs maps symbols to CoinCap asset ids
var coinCapSlugs = map[string]string{
	"XAUT": "tether-gold",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"PAXG": "pax-gold",
}

// CoinCapClient reads asset prices from CoinCap v2
type CoinCapClient struct {
	baseClient
}

// NewCoinCapClient creates a new CoinCap client
func NewCoinCapClient(baseURL string, log zerolog.Logger) *CoinCapClient {
	if baseURL == "" {
		baseURL = defaultCoinCapURL
	}
	return &CoinCapClient{baseClient: newBaseClient(baseURL, "coincap", 200, log)}
}

// Name implements Provider
func (c *CoinCapClient) Name() string { return "coincap" }

// Quotes implements Provider. Symbols without a known slug are skipped.
func (c *CoinCapClient) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	quotes := make(map[string]float64)
	var lastErr error
	attempted, failures := 0, 0

	for _, symbol := range symbols {
		slug, ok := coinCapSlugs[strings.ToUpper(symbol)]
		if !ok {
			continue
		}
		attempted++

		var payload struct {
			Data struct {
				PriceUsd string `json:"priceUsd"`
			} `json:"data"`
		}
		if err := c.getJSON(ctx, "/v2/assets/"+slug, &payload); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("CoinCap fetch failed")
			lastErr = err
			failures++
			continue
		}

		price, err := strconv.ParseFloat(payload.Data.PriceUsd, 64)
		if err == nil && price > 0 {
			quotes[symbol] = price
		}
	}

	if attempted > 0 && failures == attempted {
		return nil, lastErr
	}
	return quotes, nil
}
