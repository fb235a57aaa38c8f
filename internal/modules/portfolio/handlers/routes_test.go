package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssetStore struct {
	stored []domain.Asset
	err    error
}

func (f *fakeAssetStore) ReplaceAll(assets []domain.Asset) ([]domain.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.stored = domain.CloneAssets(assets)
	return f.stored, nil
}

func setupRouter(store AssetStore, bus *events.Bus) (chi.Router, *portfolio.Book) {
	book := portfolio.NewBook(testingpkg.NewAssetFixtures())
	handler := NewHandler(book, store, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, book
}

func TestHandleGetPortfolio(t *testing.T) {
	router, _ := setupRouter(&fakeAssetStore{}, events.NewBus())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolio/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Data portfolio.Summary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.InDelta(t, 88000.0, response.Data.TotalValue, 1e-6)
	require.Len(t, response.Data.Allocations, 3)
	assert.InDelta(t, 29.5454, response.Data.Allocations[1].CurrentPercent, 1e-3)
}

func TestHandleReplaceAssets(t *testing.T) {
	bus := events.NewBus()
	var saved *events.Event
	bus.Subscribe(events.AllocationTargetsSaved, func(e *events.Event) { saved = e })

	store := &fakeAssetStore{}
	router, book := setupRouter(store, bus)

	body := `{"assets":[
		{"id":"btc","symbol":"BTC","balance":0.5,"target_allocation":50},
		{"id":"usdc","symbol":"USDC","balance":30000,"target_allocation":50,"is_stable":true,"price":1}
	]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/portfolio/assets", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.stored, 2)
	snap := book.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 60000.0, snap[0].Price, "known price carried over")
	require.NotNil(t, saved)
	assert.Equal(t, 2, saved.Data.(*events.AllocationTargetsSavedData).Count)
}

func TestHandleReplaceAssets_Rejections(t *testing.T) {
	testCases := []struct {
		name  string
		body  string
		store *fakeAssetStore
		code  int
	}{
		{"malformed", `{"assets":`, &fakeAssetStore{}, http.StatusBadRequest},
		{"targets off", `{"assets":[{"symbol":"BTC","target_allocation":90}]}`, &fakeAssetStore{}, http.StatusBadRequest},
		{"store failure", `{"assets":[{"symbol":"BTC","target_allocation":100}]}`, &fakeAssetStore{err: errors.New("disk full")}, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, book := setupRouter(tc.store, events.NewBus())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/portfolio/assets", strings.NewReader(tc.body)))

			assert.Equal(t, tc.code, rec.Code)
			assert.Len(t, book.Snapshot(), 3, "book unchanged on rejection")
		})
	}
}
