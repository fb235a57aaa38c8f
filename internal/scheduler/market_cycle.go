package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/rs/zerolog"
)

// ResultHandler consumes each evaluation
type ResultHandler interface {
	HandleResult(ctx context.Context, result domain.RebalanceResult, assets []domain.Asset, settings domain.Settings) (rebalancing.Outcome, error)
}

// PriceStore persists adopted prices
type PriceStore interface {
	UpdatePrices(assets []domain.Asset) error
}

// MarketCycleDeps are the collaborators of one market cycle.
// Prices, Events and Metrics are optional.
type MarketCycleDeps struct {
	Source   domain.PriceSource
	Book     *portfolio.Book
	Engine   *rebalancing.Engine
	Handler  ResultHandler
	Settings domain.SettingsProvider
	Prices   PriceStore
	Events   *events.Manager
	Metrics  *metrics.Registry
}

// MarketCycleJob fetches prices, adopts them when usable, evaluates the
// portfolio and hands the result to the orchestrator.
type MarketCycleJob struct {
	source   domain.PriceSource
	book     *portfolio.Book
	engine   *rebalancing.Engine
	handler  ResultHandler
	settings domain.SettingsProvider
	prices   PriceStore
	events   *events.Manager
	metrics  *metrics.Registry
	log      zerolog.Logger

	mu        sync.RWMutex
	connected bool
	checked   bool
}

// NewMarketCycleJob creates a new market cycle job
func NewMarketCycleJob(deps MarketCycleDeps, log zerolog.Logger) *MarketCycleJob {
	return &MarketCycleJob{
		source:   deps.Source,
		book:     deps.Book,
		engine:   deps.Engine,
		handler:  deps.Handler,
		settings: deps.Settings,
		prices:   deps.Prices,
		events:   deps.Events,
		metrics:  deps.Metrics,
		log:      log.With().Str("job", "market_cycle").Logger(),
	}
}

// Name returns the job name
func (j *MarketCycleJob) Name() string {
	return "market_cycle"
}

// Connected reports whether the last price fetch produced a usable price
func (j *MarketCycleJob) Connected() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.connected
}

// Run executes one cycle. A failed fetch keeps the previous snapshot.
// Executor failures are logged here; they never stop the scheduler.
func (j *MarketCycleJob) Run() error {
	return j.RunOnce(context.Background())
}

// RunOnce executes one cycle with ctx
func (j *MarketCycleJob) RunOnce(ctx context.Context) error {
	start := time.Now()
	settings := j.settings.Current()

	j.refreshPrices(ctx, settings.Venue)

	snapshot := j.book.Snapshot()
	result := j.engine.Evaluate(snapshot, settings.DeltaThreshold)

	j.metrics.ObserveEvaluation(result.Deviation, result.NeedsRebalance, portfolio.TotalValue(snapshot))
	j.events.EmitTyped("market_cycle", &events.RebalanceEvaluatedData{
		NeedsRebalance: result.NeedsRebalance,
		Deviation:      result.Deviation,
		Threshold:      settings.DeltaThreshold,
		Actions:        len(result.Actions),
	})

	outcome, err := j.handler.HandleResult(ctx, result, snapshot, settings)
	j.metrics.ObserveCycle(string(outcome.Decision), time.Since(start))

	if err != nil {
		var batchErr *rebalancing.BatchError
		if errors.As(err, &batchErr) {
			j.log.Error().
				Err(batchErr.Err).
				Str("batch_id", batchErr.BatchID).
				Str("symbol", batchErr.Action.Symbol).
				Int("action_index", batchErr.Index).
				Msg("Rebalance batch aborted")
		} else {
			j.log.Error().Err(err).Msg("Failed to handle rebalance result")
		}
		return err
	}

	event := j.log.Debug()
	if outcome.Decision != rebalancing.DecisionNoop {
		event = j.log.Info()
	}
	event.
		Str("decision", string(outcome.Decision)).
		Float64("deviation", result.Deviation).
		Bool("needs_rebalance", result.NeedsRebalance).
		Int("actions", len(result.Actions)).
		Msg("Market cycle completed")
	return nil
}

func (j *MarketCycleJob) refreshPrices(ctx context.Context, venue domain.Venue) {
	priced, err := j.source.Fetch(ctx, j.book.Snapshot(), venue)
	if err != nil {
		j.log.Warn().Err(err).Msg("Price fetch failed, keeping previous snapshot")
		j.setConnected(false, err.Error())
		return
	}

	adopted := j.book.AdoptPrices(priced)
	if adopted == 0 {
		j.log.Warn().Msg("Price fetch returned no usable price, keeping previous snapshot")
		j.setConnected(false, "no usable price")
		return
	}
	j.setConnected(true, "")

	snapshot := j.book.Snapshot()
	if j.prices != nil {
		if err := j.prices.UpdatePrices(snapshot); err != nil {
			j.log.Warn().Err(err).Msg("Failed to persist prices")
		}
	}
	j.events.EmitTyped("market_cycle", &events.PricesUpdatedData{
		Priced:     adopted,
		Total:      len(snapshot),
		TotalValue: portfolio.TotalValue(snapshot),
	})
}

func (j *MarketCycleJob) setConnected(connected bool, reason string) {
	j.mu.Lock()
	changed := !j.checked || j.connected != connected
	j.connected = connected
	j.checked = true
	j.mu.Unlock()

	j.metrics.SetConnected(connected)
	if !changed {
		return
	}

	j.log.Info().Bool("connected", connected).Str("reason", reason).Msg("Connection status changed")
	j.events.EmitTyped("market_cycle", &events.ConnectionChangedData{
		Connected: connected,
		Reason:    reason,
	})
}
