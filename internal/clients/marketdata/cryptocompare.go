package marketdata

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const defaultCryptoCompareURL = "https://min-api.cryptocompare.com"

// CryptoCompareClient reads single-symbol prices, preferring USD over USDT
type CryptoCompareClient struct {
	baseClient
}

// NewCryptoCompareClient creates a new CryptoCompare client
func NewCryptoCompareClient(baseURL string, log zerolog.Logger) *CryptoCompareClient {
	if baseURL == "" {
		baseURL = defaultCryptoCompareURL
	}
	return &CryptoCompareClient{baseClient: newBaseClient(baseURL, "cryptocompare", 50, log)}
}

// Name implements Provider
func (c *CryptoCompareClient) Name() string { return "cryptocompare" }

// Quotes implements Provider. A failed symbol is logged and skipped; an
// error is returned only when every request failed.
func (c *CryptoCompareClient) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	quotes := make(map[string]float64, len(symbols))
	var lastErr error
	failures := 0

	for _, symbol := range symbols {
		var payload map[string]float64
		query := url.Values{"fsym": {strings.ToUpper(symbol)}, "tsyms": {"USD,USDT"}}
		if err := c.getJSON(ctx, "/data/price?"+query.Encode(), &payload); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("CryptoCompare fetch failed")
			lastErr = err
			failures++
			continue
		}

		if price := payload["USD"]; price > 0 {
			quotes[symbol] = price
		} else if price := payload["USDT"]; price > 0 {
			quotes[symbol] = price
		}
	}

	if failures > 0 && failures == len(symbols) {
		return nil, lastErr
	}
	return quotes, nil
}
