// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/rs/zerolog"
)

// ConnectionStatus reports price feed health
type ConnectionStatus interface {
	Connected() bool
}

// Handler handles rebalancing HTTP requests
type Handler struct {
	orchestrator *rebalancing.Orchestrator
	book         *portfolio.Book
	settings     domain.SettingsProvider
	connection   ConnectionStatus
	log          zerolog.Logger
}

// NewHandler creates a new rebalancing handler. connection may be nil.
func NewHandler(
	orchestrator *rebalancing.Orchestrator,
	book *portfolio.Book,
	settings domain.SettingsProvider,
	connection ConnectionStatus,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		book:         book,
		settings:     settings,
		connection:   connection,
		log:          log.With().Str("handler", "rebalancing").Logger(),
	}
}

// StatusResponse is the body of GET /api/rebalance
type StatusResponse struct {
	Result     domain.RebalanceResult `json:"result"`
	State      rebalancing.State      `json:"state"`
	Mode       string                 `json:"mode"`
	Threshold  float64                `json:"threshold"`
	Venue      domain.Venue           `json:"venue"`
	Connected  bool                   `json:"connected"`
	Connection string                 `json:"connection"`
}

// HandleGetStatus handles GET /api/rebalance
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	settings := h.settings.Current()

	mode := "manual"
	if settings.AutoExecute {
		mode = "auto"
	}
	connected := h.connection == nil || h.connection.Connected()
	connection := "DISCONNECTED"
	if connected {
		connection = "CONNECTED"
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": StatusResponse{
			Result:     h.orchestrator.CurrentResult(),
			State:      h.orchestrator.State(),
			Mode:       mode,
			Threshold:  settings.DeltaThreshold,
			Venue:      settings.Venue,
			Connected:  connected,
			Connection: connection,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleExecute handles POST /api/rebalance/execute. It runs the current
// result's actions through the same single-flight path as auto-execution,
// and only when that result needs rebalancing. The batch outlives the
// request.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	report, err := h.orchestrator.ExecuteCurrent(ctx, h.book.Snapshot(), h.settings.Current())
	if err != nil {
		if errors.Is(err, rebalancing.ErrNoRebalanceNeeded) {
			h.writeError(w, http.StatusBadRequest, "No rebalance needed")
			return
		}
		if errors.Is(err, rebalancing.ErrBatchInFlight) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}

		var batchErr *rebalancing.BatchError
		if errors.As(err, &batchErr) {
			h.log.Warn().Err(err).Str("batch_id", batchErr.BatchID).Msg("Manual batch aborted")
			h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error": err.Error(),
				"data":  report,
			})
			return
		}

		h.log.Error().Err(err).Msg("Manual batch failed")
		h.writeError(w, http.StatusInternalServerError, "Failed to execute batch")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": report,
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
