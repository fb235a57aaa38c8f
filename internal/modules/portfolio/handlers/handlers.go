// Package handlers provides HTTP handlers for the portfolio snapshot and
// asset configuration.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// AssetStore is the persistence the handler needs
type AssetStore interface {
	ReplaceAll(assets []domain.Asset) ([]domain.Asset, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	book         *portfolio.Book
	store        AssetStore
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(book *portfolio.Book, store AssetStore, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		book:         book,
		store:        store,
		eventManager: eventManager,
		log:          log.With().Str("handler", "portfolio").Logger(),
	}
}

// ReplaceAssetsRequest is the body of PUT /api/portfolio/assets
type ReplaceAssetsRequest struct {
	Assets []domain.Asset `json:"assets"`
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary := portfolio.Summarize(h.book.Snapshot())

	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if synced := h.book.LastPriceSync(); !synced.IsZero() {
		metadata["last_price_sync"] = synced.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     summary,
		"metadata": metadata,
	})
}

// HandleReplaceAssets handles PUT /api/portfolio/assets
func (h *Handler) HandleReplaceAssets(w http.ResponseWriter, r *http.Request) {
	var req ReplaceAssetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := portfolio.ValidateAllocations(req.Assets); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.store.ReplaceAll(req.Assets)
	if err != nil {
		if errors.Is(err, portfolio.ErrInvalidAllocation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to store assets")
		h.writeError(w, http.StatusInternalServerError, "Failed to store assets")
		return
	}

	h.book.ReplaceAssets(stored)
	h.eventManager.EmitTyped("portfolio", &events.AllocationTargetsSavedData{Count: len(stored)})
	h.log.Info().Int("count", len(stored)).Msg("Asset configuration replaced")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": portfolio.Summarize(h.book.Snapshot()),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
