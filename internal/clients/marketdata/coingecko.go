package marketdata

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const defaultCoinGeckoURL = "https://api.coingecko.com"

// coinGeckoIDs maps symbols to CoinGecko coin ids
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"USDC": "usd-coin",
	"USDT": "tether",
}

// CoinGeckoClient reads batched prices from the simple/price endpoint
type CoinGeckoClient struct {
	baseClient
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(baseURL string, log zerolog.Logger) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = defaultCoinGeckoURL
	}
	return &CoinGeckoClient{baseClient: newBaseClient(baseURL, "coingecko", 30, log)}
}

// Name implements Provider
func (c *CoinGeckoClient) Name() string { return "coingecko" }

// Quotes implements Provider with a single batched request
func (c *CoinGeckoClient) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	bySymbol := make(map[string]string)
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		id, ok := coinGeckoIDs[strings.ToUpper(symbol)]
		if !ok {
			continue
		}
		bySymbol[symbol] = id
		ids = append(ids, id)
	}

	quotes := make(map[string]float64)
	if len(ids) == 0 {
		return quotes, nil
	}

	var payload map[string]map[string]float64
	query := url.Values{"ids": {strings.Join(ids, ",")}, "vs_currencies": {"usd"}}
	if err := c.getJSON(ctx, "/api/v3/simple/price?"+query.Encode(), &payload); err != nil {
		return nil, err
	}

	for symbol, id := range bySymbol {
		if price := payload[id]["usd"]; price > 0 {
			quotes[symbol] = price
		}
	}
	return quotes, nil
}
