// Package rebalancing turns a priced asset snapshot into a drift metric and an
// action list, and gates those actions into execution or manual signals.
package rebalancing

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/pkg/formulas"
)

// DefaultDustThresholdUSD is the minimum |diffUsd| that produces an action
const DefaultDustThresholdUSD = 10.0

// Engine evaluates drift. It is pure apart from the injected clock used to
// stamp actions, so two evaluations at the same instant are identical.
type Engine struct {
	dustThresholdUSD float64
	now              func() time.Time
}

// NewEngine creates an engine with the given dust filter. A negative value
// falls back to DefaultDustThresholdUSD.
func NewEngine(dustThresholdUSD float64, now func() time.Time) *Engine {
	if dustThresholdUSD < 0 {
		dustThresholdUSD = DefaultDustThresholdUSD
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{dustThresholdUSD: dustThresholdUSD, now: now}
}

// DustThresholdUSD returns the configured dust filter
func (e *Engine) DustThresholdUSD() float64 {
	return e.dustThresholdUSD
}

// Evaluate computes the worst single-asset drift and the actions that would
// bring every asset back to target. Actions are produced even when the
// threshold is not crossed; callers gate on NeedsRebalance.
func (e *Engine) Evaluate(assets []domain.Asset, thresholdPercent float64) domain.RebalanceResult {
	totalValue := portfolio.TotalValue(assets)
	if totalValue <= 0 || math.IsNaN(totalValue) || math.IsInf(totalValue, 0) {
		return domain.NeutralResult()
	}

	now := e.now()
	deviations := make([]float64, 0, len(assets))
	actions := make([]domain.RebalanceAction, 0, len(assets))

	for _, asset := range assets {
		currentUSD := asset.Value()
		currentPct := portfolio.CurrentAllocationPercent(asset, totalValue)
		deviations = append(deviations, math.Abs(currentPct-asset.TargetAllocation))

		targetUSD := totalValue * asset.TargetAllocation / 100
		diffUSD := targetUSD - currentUSD
		if math.Abs(diffUSD) <= e.dustThresholdUSD {
			continue
		}
		// no price, no order size
		if asset.Price <= 0 {
			continue
		}

		side := domain.SideSell
		if diffUSD > 0 {
			side = domain.SideBuy
		}
		actions = append(actions, domain.RebalanceAction{
			AssetID:   asset.ID,
			Symbol:    asset.Symbol,
			Side:      side,
			Amount:    math.Abs(diffUSD) / asset.Price,
			USDValue:  math.Abs(diffUSD),
			Reason:    fmt.Sprintf("Alloc: %.1f%% -> Target: %g%%", currentPct, asset.TargetAllocation),
			Timestamp: now,
		})
	}

	maxDeviation := formulas.Max(deviations)
	return domain.RebalanceResult{
		NeedsRebalance: maxDeviation >= thresholdPercent,
		Deviation:      maxDeviation,
		Actions:        actions,
	}
}
