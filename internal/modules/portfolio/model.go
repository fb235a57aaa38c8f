// Package portfolio derives value metrics from asset snapshots and owns the
// tracked asset list.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/pkg/formulas"
)

// ErrInvalidAllocation is returned when an asset configuration is rejected
var ErrInvalidAllocation = errors.New("invalid allocation")

// allocationTolerance is the slack allowed when targets are summed
const allocationTolerance = 0.01

// TotalValue returns the sum of price × balance across assets
func TotalValue(assets []domain.Asset) float64 {
	prices := make([]float64, len(assets))
	balances := make([]float64, len(assets))
	for i, a := range assets {
		prices[i] = a.Price
		balances[i] = a.Balance
	}
	return formulas.Sum(formulas.Products(prices, balances))
}

// CurrentAllocationPercent returns the asset's share of totalValue in
// percentage points, or 0 when totalValue ≤ 0.
func CurrentAllocationPercent(asset domain.Asset, totalValue float64) float64 {
	if totalValue <= 0 {
		return 0
	}
	return asset.Value() / totalValue * 100
}

// Allocation is the per-asset view returned by the API
type Allocation struct {
	domain.Asset
	Value          float64 `json:"value"`
	CurrentPercent float64 `json:"current_percent"`
	Drift          float64 `json:"drift"` // current - target, signed
}

// Summary is a portfolio snapshot with derived metrics
type Summary struct {
	TotalValue  float64      `json:"total_value"`
	Allocations []Allocation `json:"allocations"`
}

// Summarize projects assets into a Summary
func Summarize(assets []domain.Asset) Summary {
	total := TotalValue(assets)
	allocations := make([]Allocation, 0, len(assets))
	for _, a := range assets {
		current := CurrentAllocationPercent(a, total)
		allocations = append(allocations, Allocation{
			Asset:          a,
			Value:          a.Value(),
			CurrentPercent: current,
			Drift:          current - a.TargetAllocation,
		})
	}
	return Summary{TotalValue: total, Allocations: allocations}
}

// ValidateAllocations checks an asset configuration before it is stored.
// The engine itself accepts anything; this is the configuration-time gate.
func ValidateAllocations(assets []domain.Asset) error {
	if len(assets) == 0 {
		return fmt.Errorf("%w: at least one asset is required", ErrInvalidAllocation)
	}

	seen := make(map[string]bool, len(assets))
	ids := make(map[string]bool, len(assets))
	targets := make([]float64, 0, len(assets))
	for _, a := range assets {
		symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if symbol == "" {
			return fmt.Errorf("%w: symbol is required", ErrInvalidAllocation)
		}
		if seen[symbol] {
			return fmt.Errorf("%w: duplicate symbol %s", ErrInvalidAllocation, symbol)
		}
		seen[symbol] = true

		if a.ID != "" {
			if ids[a.ID] {
				return fmt.Errorf("%w: duplicate id %s", ErrInvalidAllocation, a.ID)
			}
			ids[a.ID] = true
		}

		if a.Balance < 0 || math.IsNaN(a.Balance) {
			return fmt.Errorf("%w: %s balance must be >= 0", ErrInvalidAllocation, symbol)
		}
		if a.Price < 0 || math.IsNaN(a.Price) {
			return fmt.Errorf("%w: %s price must be >= 0", ErrInvalidAllocation, symbol)
		}
		if a.TargetAllocation < 0 || math.IsNaN(a.TargetAllocation) {
			return fmt.Errorf("%w: %s target must be >= 0", ErrInvalidAllocation, symbol)
		}
		targets = append(targets, a.TargetAllocation)
	}

	if sum := formulas.Sum(targets); math.Abs(sum-100) > allocationTolerance {
		return fmt.Errorf("%w: targets sum to %.2f, want 100", ErrInvalidAllocation, sum)
	}
	return nil
}

// DefaultAssets is the seed portfolio used on a fresh install
func DefaultAssets() []domain.Asset {
	return []domain.Asset{
		{
			ID:               "btc",
			Symbol:           "BTC",
			Name:             "Bitcoin",
			Balance:          0.5,
			TargetAllocation: 33,
		},
		{
			ID:               "xaut",
			Symbol:           "XAUT",
			Name:             "Tether Gold",
			Balance:          13,
			TargetAllocation: 33,
			Address:          "0x68749665FF8D2d112Fa859AA293F07a622782F38",
		},
		{
			ID:               "usdc",
			Symbol:           "USDC",
			Name:             "USD Coin",
			Price:            1,
			Balance:          32000,
			TargetAllocation: 34,
			Address:          "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
			IsStable:         true,
		},
	}
}
