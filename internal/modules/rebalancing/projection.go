package rebalancing

import (
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
)

// ProjectOptimisticBalances assumes a batch landed every asset exactly on
// target: balance = totalValue × target / 100 / price. It is an approximation,
// not a reconciliation against fills. Replace with fill-based accounting once
// executors return authoritative fill amounts.
//
// An unpriced asset divides by 1 instead of 0.
func ProjectOptimisticBalances(assets []domain.Asset) []domain.Asset {
	totalBefore := portfolio.TotalValue(assets)
	projected := domain.CloneAssets(assets)
	for i := range projected {
		price := projected[i].Price
		if price <= 0 {
			price = 1
		}
		projected[i].Balance = totalBefore * projected[i].TargetAllocation / 100 / price
	}
	return projected
}
