package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/settings"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) chi.Router {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "config")
	t.Cleanup(cleanup)

	repo := settings.NewRepository(db.Conn(), zerolog.Nop())
	service := settings.NewService(repo, domain.Settings{}, nil, zerolog.Nop())
	require.NoError(t, service.SeedDefaults())
	_, err := service.Load()
	require.NoError(t, err)

	router := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleGet_RedactsCredentials(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/settings/", strings.NewReader(`{"private_key":"0xdeadbeef"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/settings/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "0xdeadbeef")

	var response struct {
		Data settings.SettingsView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.True(t, response.Data.HasPrivateKey)
	assert.Equal(t, 5.0, response.Data.DeltaThreshold)
}

func TestHandleUpdate_ValidationErrors(t *testing.T) {
	router := setupRouter(t)

	testCases := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"zero threshold", `{"delta_threshold":0}`, http.StatusBadRequest},
		{"unknown venue", `{"venue":"KRAKEN"}`, http.StatusBadRequest},
		{"valid", `{"delta_threshold":2.5,"auto_execute":true}`, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/settings/", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}
