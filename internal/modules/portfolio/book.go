package portfolio

import (
	"sync"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
)

// Book holds the live asset snapshot shared by the market cycle, the
// orchestrator and read-only API consumers. Every accessor copies.
type Book struct {
	mu            sync.RWMutex
	assets        []domain.Asset
	lastPriceSync time.Time
	now           func() time.Time
}

// NewBook creates a book holding a copy of assets
func NewBook(assets []domain.Asset) *Book {
	return &Book{
		assets: domain.CloneAssets(assets),
		now:    time.Now,
	}
}

// Snapshot returns a copy of the current assets
func (b *Book) Snapshot() []domain.Asset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.CloneAssets(b.assets)
}

// LastPriceSync returns when prices were last adopted (zero if never)
func (b *Book) LastPriceSync() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPriceSync
}

// AdoptPrices copies positive prices from priced onto matching assets (by ID).
// Balances and targets are left untouched. Returns how many assets got a
// usable price; when zero the snapshot is unchanged.
func (b *Book) AdoptPrices(priced []domain.Asset) int {
	byID := make(map[string]float64, len(priced))
	for _, a := range priced {
		if a.Price > 0 {
			byID[a.ID] = a.Price
		}
	}
	if len(byID) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	adopted := 0
	next := domain.CloneAssets(b.assets)
	for i := range next {
		if price, ok := byID[next[i].ID]; ok {
			next[i].Price = price
			adopted++
		}
	}
	if adopted > 0 {
		b.assets = next
		b.lastPriceSync = b.now()
	}
	return adopted
}

// ReplaceBalances sets balances from updated (by ID), keeping current prices
// and targets. Used after a successful batch.
func (b *Book) ReplaceBalances(updated []domain.Asset) {
	byID := make(map[string]float64, len(updated))
	for _, a := range updated {
		byID[a.ID] = a.Balance
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := domain.CloneAssets(b.assets)
	for i := range next {
		if balance, ok := byID[next[i].ID]; ok {
			next[i].Balance = balance
		}
	}
	b.assets = next
}

// ReplaceAssets swaps the whole asset list (configuration change).
// Known prices are carried over for assets that keep their ID.
func (b *Book) ReplaceAssets(assets []domain.Asset) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prices := make(map[string]float64, len(b.assets))
	for _, a := range b.assets {
		prices[a.ID] = a.Price
	}

	next := domain.CloneAssets(assets)
	for i := range next {
		if next[i].Price <= 0 {
			next[i].Price = prices[next[i].ID]
		}
	}
	b.assets = next
}
