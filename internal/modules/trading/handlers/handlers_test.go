package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	trades    []domain.TradeLog
	err       error
	lastLimit int
}

func (f *fakeHistory) GetHistory(_ context.Context, limit int) ([]domain.TradeLog, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.trades) {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}

func newRouter(history HistoryReader) chi.Router {
	router := chi.NewRouter()
	NewHandler(history, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleGetTrades(t *testing.T) {
	action := domain.RebalanceAction{Symbol: "BTC", Side: domain.SideSell, Amount: 0.016, USDValue: 960}
	history := &fakeHistory{trades: []domain.TradeLog{
		testingpkg.NewReceiptFixture(action, domain.VenueHyperliquid),
		testingpkg.NewReceiptFixture(action, domain.VenueHyperliquid),
	}}
	router := newRouter(history)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
		wantCount int
	}{
		{"default limit", "", http.StatusOK, 50, 2},
		{"explicit limit", "?limit=1", http.StatusOK, 1, 1},
		{"capped limit", "?limit=5000", http.StatusOK, 1000, 2},
		{"invalid limit", "?limit=abc", http.StatusBadRequest, 0, 0},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history.lastLimit = 0
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trades/"+tt.query, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantLimit, history.lastLimit)

			var response struct {
				Data []domain.TradeLog `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
			assert.Len(t, response.Data, tt.wantCount)
			assert.Equal(t, "BTC-USD", response.Data[0].Pair)
		})
	}
}

func TestHandleGetTrades_StoreError(t *testing.T) {
	router := newRouter(&fakeHistory{err: errors.New("disk I/O error")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trades/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O")
}
