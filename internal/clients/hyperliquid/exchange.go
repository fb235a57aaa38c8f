package hyperliquid

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"
)

// ErrRejected is returned when the exchange answers with status "err"
var ErrRejected = errors.New("hyperliquid rejected the request")

// OrderType wraps the time-in-force of a limit order
type OrderType struct {
	Limit LimitOrder `json:"limit" msgpack:"limit"`
}

// LimitOrder carries the time-in-force ("Gtc", "Ioc", "Alo")
type LimitOrder struct {
	Tif string `json:"tif" msgpack:"tif"`
}

// OrderWire is a single order in the wire format the exchange expects.
// Field order matters for the msgpack digest.
type OrderWire struct {
	Asset      int       `json:"a" msgpack:"a"`
	IsBuy      bool      `json:"b" msgpack:"b"`
	LimitPx    string    `json:"p" msgpack:"p"`
	Size       string    `json:"s" msgpack:"s"`
	ReduceOnly bool      `json:"r" msgpack:"r"`
	OrderType  OrderType `json:"t" msgpack:"t"`
	Cloid      string    `json:"c,omitempty" msgpack:"c,omitempty"`
}

// OrderAction is the "order" exchange action
type OrderAction struct {
	Type     string      `json:"type" msgpack:"type"`
	Orders   []OrderWire `json:"orders" msgpack:"orders"`
	Grouping string      `json:"grouping" msgpack:"grouping"`
}

// NewOrderAction builds a single good-til-cancelled limit order.
// Price and size are rendered with four decimals.
func NewOrderAction(asset int, isBuy bool, limitPx, size float64) OrderAction {
	return OrderAction{
		Type: "order",
		Orders: []OrderWire{{
			Asset:      asset,
			IsBuy:      isBuy,
			LimitPx:    FormatDecimal(limitPx),
			Size:       FormatDecimal(size),
			ReduceOnly: false,
			OrderType:  OrderType{Limit: LimitOrder{Tif: "Gtc"}},
		}},
		Grouping: "na",
	}
}

// FormatDecimal renders v with four decimals
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Signature is an ECDSA signature over the action hash
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer signs an action hash. Key custody lives outside this package.
type Signer interface {
	Sign(ctx context.Context, actionHash []byte) (*Signature, error)
}

// ExchangeRequest is the body posted to /exchange
type ExchangeRequest struct {
	Action       OrderAction `json:"action"`
	Nonce        int64       `json:"nonce"`
	Signature    *Signature  `json:"signature,omitempty"`
	VaultAddress string      `json:"vaultAddress,omitempty"`
}

// ExchangeResponse is the envelope returned by /exchange
type ExchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// OrderStatus is one entry of a successful order response
type OrderStatus struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

// OrderID returns the exchange order id, or 0 when the order errored
func (s OrderStatus) OrderID() int64 {
	switch {
	case s.Resting != nil:
		return s.Resting.Oid
	case s.Filled != nil:
		return s.Filled.Oid
	}
	return 0
}

// ActionHash returns the msgpack encoding of the action followed by the
// big-endian nonce, hashed with sha256
func ActionHash(action OrderAction, nonce int64) ([]byte, error) {
	packed, err := msgpack.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to msgpack action: %w", err)
	}
	buf := make([]byte, 0, len(packed)+8)
	buf = append(buf, packed...)
	for shift := 56; shift >= 0; shift -= 8 {
		buf = append(buf, byte(nonce>>uint(shift)))
	}
	sum := sha256.Sum256(buf)
	return sum[:], nil
}

// ClientOrderID derives a 128-bit client order id from the action digest
func ClientOrderID(action OrderAction, nonce int64) (string, error) {
	hash, err := ActionHash(action, nonce)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(hash[:16]), nil
}

// ExchangeClient posts signed actions to the /exchange endpoint
type ExchangeClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	signer     Signer
	now        func() time.Time
	log        zerolog.Logger
}

// NewExchangeClient creates a new exchange client. signer may be nil, in
// which case requests are sent unsigned and the venue will reject them.
func NewExchangeClient(baseURL string, signer Signer, log zerolog.Logger) *ExchangeClient {
	if baseURL == "" {
		baseURL = DefaultExchangeURL
	}
	return &ExchangeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		signer:     signer,
		now:        time.Now,
		log:        log.With().Str("component", "hyperliquid-exchange").Logger(),
	}
}

// OrderResult is the outcome of PlaceOrder
type OrderResult struct {
	Cloid    string
	Nonce    int64
	Statuses []OrderStatus
}

// PlaceOrder stamps the action with a client order id and a millisecond
// nonce, signs it when a signer is configured and submits it.
func (c *ExchangeClient) PlaceOrder(ctx context.Context, action OrderAction) (*OrderResult, error) {
	nonce := c.now().UnixMilli()

	cloid, err := ClientOrderID(action, nonce)
	if err != nil {
		return nil, err
	}
	for i := range action.Orders {
		action.Orders[i].Cloid = cloid
	}

	req := ExchangeRequest{Action: action, Nonce: nonce}
	if c.signer != nil {
		hash, err := ActionHash(action, nonce)
		if err != nil {
			return nil, err
		}
		sig, err := c.signer.Sign(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to sign order: %w", err)
		}
		req.Signature = sig
	}

	c.log.Info().
		Int("asset", action.Orders[0].Asset).
		Bool("is_buy", action.Orders[0].IsBuy).
		Str("price", action.Orders[0].LimitPx).
		Str("size", action.Orders[0].Size).
		Str("cloid", cloid).
		Msg("Submitting order")

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Status != "ok" {
		var reason string
		if err := json.Unmarshal(resp.Response, &reason); err != nil {
			reason = string(resp.Response)
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, reason)
	}

	var payload struct {
		Type string `json:"type"`
		Data struct {
			Statuses []OrderStatus `json:"statuses"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Response, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}
	for _, status := range payload.Data.Statuses {
		if status.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRejected, status.Error)
		}
	}

	return &OrderResult{Cloid: cloid, Nonce: nonce, Statuses: payload.Data.Statuses}, nil
}

func (c *ExchangeClient) post(ctx context.Context, payload ExchangeRequest) (*ExchangeResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exchange", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out ExchangeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}
