package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInfoServer(t *testing.T, metaCalls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/info", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req["type"] {
		case "allMids":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"BTC":  "60000.5",
				"ETH":  "3000.1",
				"BAD":  "n/a",
				"ZERO": "0",
			})
		case "meta":
			if metaCalls != nil {
				atomic.AddInt32(metaCalls, 1)
			}
			_ = json.NewEncoder(w).Encode(Meta{Universe: []AssetMeta{
				{Name: "BTC", SzDecimals: 5},
				{Name: "ETH", SzDecimals: 4},
				{Name: "XAUT", SzDecimals: 2},
			}})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func TestInfoClient_AllMids(t *testing.T) {
	server := newInfoServer(t, nil)
	defer server.Close()

	client := NewInfoClient(server.URL, zerolog.Nop())
	mids, err := client.AllMids(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"BTC": 60000.5, "ETH": 3000.1}, mids)
}

func TestInfoClient_AssetIndexCachesMeta(t *testing.T) {
	var calls int32
	server := newInfoServer(t, &calls)
	defer server.Close()

	client := NewInfoClient(server.URL, zerolog.Nop())

	idx, err := client.AssetIndex(context.Background(), "xaut")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	idx, err = client.AssetIndex(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = client.AssetIndex(context.Background(), "DOGE")
	assert.Error(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInfoClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewInfoClient(server.URL, zerolog.Nop())
	_, err := client.AllMids(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewInfoClient_DefaultsToMainnet(t *testing.T) {
	client := NewInfoClient("", zerolog.Nop())
	assert.Equal(t, DefaultInfoURL, client.baseURL)
}
