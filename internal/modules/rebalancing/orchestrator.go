package rebalancing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBatchInFlight is returned by ExecuteBatch while another batch runs
var ErrBatchInFlight = errors.New("rebalance batch already in flight")

// ErrNoRebalanceNeeded is returned by ExecuteCurrent when the published
// result is below the trigger threshold
var ErrNoRebalanceNeeded = errors.New("no rebalance needed")

// State is the orchestrator's execution state
type State string

const (
	StateIdle      State = "IDLE"
	StateExecuting State = "EXECUTING"
)

// Decision is what one evaluated result leads to
type Decision string

const (
	DecisionNoop         Decision = "NOOP"
	DecisionExecute      Decision = "EXECUTE"
	DecisionManualSignal Decision = "MANUAL_SIGNAL"
	DecisionSuppressed   Decision = "ALERT_SUPPRESSED"
	DecisionInFlight     Decision = "IN_FLIGHT"
)

// Decide is the single transition table for a poll cycle. Only
// NeedsRebalance gates action; a triggered result with an empty action list
// still executes or signals.
func Decide(result domain.RebalanceResult, settings domain.Settings, state State, canAlert bool) Decision {
	if !result.NeedsRebalance {
		return DecisionNoop
	}
	if settings.AutoExecute {
		if state == StateExecuting {
			return DecisionInFlight
		}
		return DecisionExecute
	}
	if canAlert {
		return DecisionManualSignal
	}
	return DecisionSuppressed
}

// BatchError reports the action that aborted a batch. It unwraps to the
// executor error.
type BatchError struct {
	BatchID string
	Index   int
	Action  domain.RebalanceAction
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s aborted at action %d (%s %s): %v",
		e.BatchID, e.Index, e.Action.Side, e.Action.Symbol, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// BatchReport describes one ExecuteBatch run
type BatchReport struct {
	BatchID    string            `json:"batch_id"`
	Receipts   []domain.TradeLog `json:"receipts"`
	Projected  []domain.Asset    `json:"projected,omitempty"`
	Notified   bool              `json:"notified"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Outcome is what HandleResult did with a result
type Outcome struct {
	Decision Decision     `json:"decision"`
	Report   *BatchReport `json:"report,omitempty"`
	Notified bool         `json:"notified"`
}

// BalanceStore persists projected balances
type BalanceStore interface {
	UpdateBalances(assets []domain.Asset) error
}

// OrchestratorDeps are the collaborators of the orchestrator.
// Notifier, Balances, Events and Metrics are optional.
type OrchestratorDeps struct {
	Executor domain.Executor
	TradeLog domain.TradeLogStore
	Notifier domain.Notifier
	Cooldown *AlertCooldown
	Book     *portfolio.Book
	Balances BalanceStore
	Events   *events.Manager
	Metrics  *metrics.Registry
}

// Orchestrator gates engine results into execution or manual signals and
// guarantees at most one batch in flight.
type Orchestrator struct {
	executor domain.Executor
	tradeLog domain.TradeLogStore
	notifier domain.Notifier
	cooldown *AlertCooldown
	book     *portfolio.Book
	balances BalanceStore
	events   *events.Manager
	metrics  *metrics.Registry
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string

	mu      sync.RWMutex
	state   State
	current domain.RebalanceResult
	trades  []domain.TradeLog
}

// NewOrchestrator creates an idle orchestrator
func NewOrchestrator(deps OrchestratorDeps, log zerolog.Logger) *Orchestrator {
	cooldown := deps.Cooldown
	if cooldown == nil {
		cooldown = NewAlertCooldown(DefaultAlertCooldown)
	}
	return &Orchestrator{
		executor: deps.Executor,
		tradeLog: deps.TradeLog,
		notifier: deps.Notifier,
		cooldown: cooldown,
		book:     deps.Book,
		balances: deps.Balances,
		events:   deps.Events,
		metrics:  deps.Metrics,
		log:      log.With().Str("service", "orchestrator").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
		state:    StateIdle,
		current:  domain.NeutralResult(),
		trades:   []domain.TradeLog{},
	}
}

// State returns the current execution state
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// CurrentResult returns the last published result
func (o *Orchestrator) CurrentResult() domain.RebalanceResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return copyResult(o.current)
}

// RecentTrades returns the cached trade log view, newest first
func (o *Orchestrator) RecentTrades() []domain.TradeLog {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.TradeLog, len(o.trades))
	copy(out, o.trades)
	return out
}

// RefreshTrades reloads the cached trade log view from the store
func (o *Orchestrator) RefreshTrades(ctx context.Context) error {
	trades, err := o.tradeLog.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh trade log: %w", err)
	}
	if trades == nil {
		trades = []domain.TradeLog{}
	}
	o.mu.Lock()
	o.trades = trades
	o.mu.Unlock()
	return nil
}

// transition is the only place state changes. Entering EXECUTING is
// allowed from IDLE only; returning to IDLE always succeeds. The result
// published at the moment of the transition is returned with it.
func (o *Orchestrator) transition(to State) (domain.RebalanceResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if to == StateExecuting && o.state != StateIdle {
		return domain.RebalanceResult{}, false
	}
	o.state = to
	o.metrics.SetExecuting(to == StateExecuting)
	return copyResult(o.current), true
}

func (o *Orchestrator) publish(result domain.RebalanceResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = copyResult(result)
}

// HandleResult publishes result and acts on it per Decide. Executor failures
// are returned as *BatchError; a batch already in flight is dropped silently.
func (o *Orchestrator) HandleResult(ctx context.Context, result domain.RebalanceResult, assets []domain.Asset, settings domain.Settings) (Outcome, error) {
	o.publish(result)

	now := o.now()
	canAlert := o.notifier != nil && o.cooldown.CanAlert(now, settings.NotifierConfigured())
	decision := Decide(result, settings, o.State(), canAlert)
	outcome := Outcome{Decision: decision}

	switch decision {
	case DecisionExecute:
		report, err := o.executeResult(ctx, result, assets, settings)
		if errors.Is(err, ErrBatchInFlight) {
			outcome.Decision = DecisionInFlight
			o.log.Debug().Msg("Batch in flight, dropping tick")
			return outcome, nil
		}
		outcome.Report = report
		if report != nil {
			outcome.Notified = report.Notified
		}
		return outcome, err

	case DecisionManualSignal:
		msg := FormatRebalanceMessage(settings.Venue, result.Deviation, result.Actions, false)
		delivered := o.notifier.Send(ctx, msg)
		o.cooldown.Record(now)
		outcome.Notified = delivered

		o.metrics.ObserveAlert("manual_signal", delivered)
		o.events.EmitTyped("rebalancing", &events.ManualSignalSentData{
			Deviation: result.Deviation,
			Actions:   len(result.Actions),
			Delivered: delivered,
		})
		if delivered {
			o.log.Info().
				Float64("deviation", result.Deviation).
				Int("actions", len(result.Actions)).
				Msg("Manual rebalance signal sent")
		} else {
			o.log.Warn().Float64("deviation", result.Deviation).Msg("Manual rebalance signal not delivered")
		}

	case DecisionInFlight:
		o.log.Debug().Msg("Batch in flight, dropping tick")

	case DecisionSuppressed:
		o.log.Debug().
			Float64("deviation", result.Deviation).
			Time("last_alert", o.cooldown.LastAlert()).
			Msg("Rebalance needed, alert suppressed")
	}

	return outcome, nil
}

// ExecuteBatch runs actions sequentially through the executor. The first
// executor error aborts the batch: a FAILED receipt is logged and the error
// is returned as *BatchError without attempting the remaining actions.
// On success balances are projected optimistically, the published result
// is cleared and a summary is sent when the notifier is configured.
// Returns ErrBatchInFlight, with no side effects, while another batch runs.
// The summary reports the deviation published when the batch was accepted.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, actions []domain.RebalanceAction, assets []domain.Asset, settings domain.Settings) (*BatchReport, error) {
	accepted, ok := o.transition(StateExecuting)
	if !ok {
		return nil, ErrBatchInFlight
	}
	defer o.transition(StateIdle)

	return o.runBatch(ctx, accepted.Deviation, actions, assets, settings)
}

// ExecuteCurrent runs the published result's actions, the manual trigger
// path. It returns ErrNoRebalanceNeeded without calling the executor unless
// the published result needs rebalancing.
func (o *Orchestrator) ExecuteCurrent(ctx context.Context, assets []domain.Asset, settings domain.Settings) (*BatchReport, error) {
	current, ok := o.transition(StateExecuting)
	if !ok {
		return nil, ErrBatchInFlight
	}
	defer o.transition(StateIdle)

	if !current.NeedsRebalance {
		return nil, ErrNoRebalanceNeeded
	}
	return o.runBatch(ctx, current.Deviation, current.Actions, assets, settings)
}

func (o *Orchestrator) executeResult(ctx context.Context, result domain.RebalanceResult, assets []domain.Asset, settings domain.Settings) (*BatchReport, error) {
	if _, ok := o.transition(StateExecuting); !ok {
		return nil, ErrBatchInFlight
	}
	defer o.transition(StateIdle)

	return o.runBatch(ctx, result.Deviation, result.Actions, assets, settings)
}

// runBatch must be called in EXECUTING. Once started a batch runs to
// completion or to its first executor failure; caller cancellation does not
// reach the executor.
func (o *Orchestrator) runBatch(ctx context.Context, deviation float64, actions []domain.RebalanceAction, assets []domain.Asset, settings domain.Settings) (*BatchReport, error) {
	ctx = context.WithoutCancel(ctx)

	report := &BatchReport{
		BatchID:   o.newID(),
		Receipts:  make([]domain.TradeLog, 0, len(actions)),
		StartedAt: o.now(),
	}
	log := o.log.With().Str("batch_id", report.BatchID).Str("venue", string(settings.Venue)).Logger()
	log.Info().Int("actions", len(actions)).Msg("Executing rebalance batch")

	for i, action := range actions {
		receipt, err := o.executor.Execute(ctx, action, settings)
		if err != nil {
			failed := o.failedReceipt(action, settings.Venue, report.BatchID, err)
			o.appendReceipt(ctx, log, failed)
			report.Receipts = append(report.Receipts, failed)
			report.FinishedAt = o.now()

			if refreshErr := o.RefreshTrades(ctx); refreshErr != nil {
				log.Warn().Err(refreshErr).Msg("Failed to refresh trade log")
			}
			o.metrics.ObserveBatch(false)
			o.events.EmitTyped("rebalancing", &events.BatchFailedData{
				BatchID:     report.BatchID,
				Symbol:      action.Symbol,
				ActionIndex: i,
				Error:       err.Error(),
			})
			log.Error().
				Err(err).
				Int("index", i).
				Str("symbol", action.Symbol).
				Str("side", string(action.Side)).
				Msg("Rebalance batch aborted")

			return report, &BatchError{BatchID: report.BatchID, Index: i, Action: action, Err: err}
		}

		receipt = o.completeReceipt(receipt, action, settings.Venue, report.BatchID)
		o.appendReceipt(ctx, log, receipt)
		report.Receipts = append(report.Receipts, receipt)

		o.events.EmitTyped("rebalancing", &events.TradeExecutedData{
			BatchID:  report.BatchID,
			Symbol:   action.Symbol,
			Side:     string(action.Side),
			Amount:   action.Amount,
			USDValue: action.USDValue,
			Status:   string(receipt.Status),
			TxHash:   receipt.TxHash,
		})
	}

	report.Projected = ProjectOptimisticBalances(assets)
	if o.book != nil {
		o.book.ReplaceBalances(report.Projected)
	}
	if o.balances != nil {
		if err := o.balances.UpdateBalances(report.Projected); err != nil {
			log.Warn().Err(err).Msg("Failed to persist projected balances")
		}
	}

	o.publish(domain.NeutralResult())

	if err := o.RefreshTrades(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to refresh trade log")
	}

	if o.notifier != nil && settings.NotifierConfigured() {
		msg := FormatRebalanceMessage(settings.Venue, deviation, actions, true)
		report.Notified = o.notifier.Send(ctx, msg)
		o.metrics.ObserveAlert("batch_summary", report.Notified)
		if !report.Notified {
			log.Warn().Msg("Batch summary notification not delivered")
		}
	}

	report.FinishedAt = o.now()
	o.metrics.ObserveBatch(true)
	o.events.EmitTyped("rebalancing", &events.BatchCompletedData{
		BatchID:    report.BatchID,
		Venue:      string(settings.Venue),
		Actions:    len(actions),
		TotalValue: portfolio.TotalValue(assets),
		Notified:   report.Notified,
	})
	log.Info().
		Int("receipts", len(report.Receipts)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Rebalance batch completed")

	return report, nil
}

func (o *Orchestrator) appendReceipt(ctx context.Context, log zerolog.Logger, receipt domain.TradeLog) {
	o.metrics.ObserveTrade(string(receipt.Venue), string(receipt.Status))
	if err := o.tradeLog.Append(ctx, receipt); err != nil {
		log.Error().
			Err(err).
			Str("trade_id", receipt.ID).
			Str("status", string(receipt.Status)).
			Msg("Failed to append trade receipt")
	}
}

func (o *Orchestrator) completeReceipt(receipt domain.TradeLog, action domain.RebalanceAction, venue domain.Venue, batchID string) domain.TradeLog {
	if receipt.ID == "" {
		receipt.ID = o.newID()
	}
	if receipt.Timestamp.IsZero() {
		receipt.Timestamp = o.now()
	}
	if receipt.Venue == "" {
		receipt.Venue = venue
	}
	if receipt.Side == "" {
		receipt.Side = action.Side
	}
	if receipt.Pair == "" {
		receipt.Pair = receipt.Venue.Pair(action.Symbol)
	}
	receipt.BatchID = batchID
	return receipt
}

func (o *Orchestrator) failedReceipt(action domain.RebalanceAction, venue domain.Venue, batchID string, err error) domain.TradeLog {
	return domain.TradeLog{
		ID:        o.newID(),
		Timestamp: o.now(),
		Venue:     venue,
		Pair:      venue.Pair(action.Symbol),
		Side:      action.Side,
		Amount:    action.Amount,
		Price:     action.ImpliedPrice(),
		TotalUSD:  action.USDValue,
		Status:    domain.TradeStatusFailed,
		Error:     err.Error(),
		BatchID:   batchID,
	}
}

func copyResult(r domain.RebalanceResult) domain.RebalanceResult {
	actions := make([]domain.RebalanceAction, len(r.Actions))
	copy(actions, r.Actions)
	r.Actions = actions
	return r
}
