package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSigner struct {
	hashes [][]byte
}

func (s *staticSigner) Sign(_ context.Context, hash []byte) (*Signature, error) {
	s.hashes = append(s.hashes, hash)
	return &Signature{R: "0x01", S: "0x02", V: 27}, nil
}

func TestNewOrderAction_FormatsFourDecimals(t *testing.T) {
	action := NewOrderAction(3, true, 2000, 1.52)

	require.Len(t, action.Orders, 1)
	order := action.Orders[0]
	assert.Equal(t, "order", action.Type)
	assert.Equal(t, "na", action.Grouping)
	assert.Equal(t, 3, order.Asset)
	assert.True(t, order.IsBuy)
	assert.Equal(t, "2000.0000", order.LimitPx)
	assert.Equal(t, "1.5200", order.Size)
	assert.False(t, order.ReduceOnly)
	assert.Equal(t, "Gtc", order.OrderType.Limit.Tif)
}

func TestClientOrderID_DeterministicPerNonce(t *testing.T) {
	action := NewOrderAction(0, false, 60000, 0.016)

	a, err := ClientOrderID(action, 1700000000000)
	require.NoError(t, err)
	b, err := ClientOrderID(action, 1700000000000)
	require.NoError(t, err)
	c, err := ClientOrderID(action, 1700000000001)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "0x"))
	assert.Len(t, a, 34)
}

func TestExchangeClient_PlaceOrderSuccess(t *testing.T) {
	var received ExchangeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchange", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":77}}]}}}`))
	}))
	defer server.Close()

	signer := &staticSigner{}
	client := NewExchangeClient(server.URL, signer, zerolog.Nop())
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }

	result, err := client.PlaceOrder(context.Background(), NewOrderAction(1, true, 2000, 1.52))
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000000), result.Nonce)
	assert.Equal(t, int64(77), result.Statuses[0].OrderID())
	assert.Equal(t, int64(1700000000000), received.Nonce)
	assert.Equal(t, result.Cloid, received.Action.Orders[0].Cloid)
	require.NotNil(t, received.Signature)
	assert.Equal(t, 27, received.Signature.V)
	assert.Len(t, signer.hashes, 1)
}

func TestExchangeClient_RejectedOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"envelope error", `{"status":"err","response":"User or API Wallet does not exist."}`, "does not exist"},
		{"order status error", `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin"}]}}}`, "Insufficient margin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewExchangeClient(server.URL, nil, zerolog.Nop())
			_, err := client.PlaceOrder(context.Background(), NewOrderAction(0, false, 60000, 0.016))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRejected))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExchangeClient_UnsignedOmitsSignature(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"oid":5,"totalSz":"0.016","avgPx":"60000"}}]}}}`))
	}))
	defer server.Close()

	client := NewExchangeClient(server.URL, nil, zerolog.Nop())
	result, err := client.PlaceOrder(context.Background(), NewOrderAction(0, false, 60000, 0.016))
	require.NoError(t, err)

	_, hasSignature := raw["signature"]
	assert.False(t, hasSignature)
	assert.Equal(t, int64(5), result.Statuses[0].OrderID())
}
