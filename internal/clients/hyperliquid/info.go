// Package hyperliquid provides clients for the Hyperliquid info, exchange and
// websocket APIs. Pricing always reads mainnet; orders go to the configured
// exchange endpoint.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultInfoURL     = "https://api.hyperliquid.xyz"
	DefaultExchangeURL = "https://api.hyperliquid-testnet.xyz"
	DefaultWSURL       = "wss://api.hyperliquid.xyz/ws"

	// Hyperliquid allows 1200 weight per minute per IP; info calls weigh 2-20
	requestsPerSecond = 10
	metaTTL           = 10 * time.Minute
)

// AssetMeta describes one perpetual in the exchange universe
type AssetMeta struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}

// Meta is the response of the "meta" info request
type Meta struct {
	Universe []AssetMeta `json:"universe"`
}

// InfoClient reads market data from the /info endpoint
type InfoClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger

	metaMu      sync.Mutex
	meta        *Meta
	metaFetched time.Time
}

// NewInfoClient creates a new info client. An empty baseURL uses mainnet.
func NewInfoClient(baseURL string, log zerolog.Logger) *InfoClient {
	if baseURL == "" {
		baseURL = DefaultInfoURL
	}
	return &InfoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		log:        log.With().Str("component", "hyperliquid-info").Logger(),
	}
}

// AllMids returns the mid price of every listed coin, keyed by coin name
func (c *InfoClient) AllMids(ctx context.Context) (map[string]float64, error) {
	var raw map[string]string
	if err := c.post(ctx, map[string]string{"type": "allMids"}, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch allMids: %w", err)
	}
	return ParseMids(raw, c.log), nil
}

// Meta returns the perpetuals universe. Results are cached for metaTTL.
func (c *InfoClient) Meta(ctx context.Context) (*Meta, error) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()

	if c.meta != nil && time.Since(c.metaFetched) < metaTTL {
		return c.meta, nil
	}

	var meta Meta
	if err := c.post(ctx, map[string]string{"type": "meta"}, &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch meta: %w", err)
	}
	c.meta = &meta
	c.metaFetched = time.Now()
	return c.meta, nil
}

// AssetIndex returns the universe index of coin, the "a" field of an order
func (c *InfoClient) AssetIndex(ctx context.Context, coin string) (int, error) {
	meta, err := c.Meta(ctx)
	if err != nil {
		return 0, err
	}
	for i, asset := range meta.Universe {
		if strings.EqualFold(asset.Name, coin) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("coin %s not listed on hyperliquid", coin)
}

func (c *InfoClient) post(ctx context.Context, payload interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("info API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ParseMids converts the string-encoded mids map. Unparseable or
// non-positive entries are dropped.
func ParseMids(raw map[string]string, log zerolog.Logger) map[string]float64 {
	mids := make(map[string]float64, len(raw))
	for coin, value := range raw {
		price, err := strconv.ParseFloat(value, 64)
		if err != nil || price <= 0 {
			log.Debug().Str("coin", coin).Str("value", value).Msg("Skipping unparseable mid")
			continue
		}
		mids[coin] = price
	}
	return mids
}
