package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssetRepository persists the tracked asset list in config.db.
// List order (the position column) is the engine's iteration order.
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("repo", "assets").Logger(),
		now: time.Now,
	}
}

// GetAll returns all assets in configured order
func (r *AssetRepository) GetAll() ([]domain.Asset, error) {
	rows, err := r.db.Query(`SELECT id, symbol, name, price, balance, target_allocation,
		address, is_stable
		FROM assets
		ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := make([]domain.Asset, 0)
	for rows.Next() {
		var a domain.Asset
		var address sql.NullString
		var isStable int
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Price, &a.Balance,
			&a.TargetAllocation, &address, &isStable); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Address = address.String
		a.IsStable = isStable != 0
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

// ReplaceAll swaps the stored asset list in one transaction and returns
// what was stored. Missing IDs are generated; symbols are upper-cased.
// Callers validate with ValidateAllocations first.
func (r *AssetRepository) ReplaceAll(assets []domain.Asset) ([]domain.Asset, error) {
	stored := domain.CloneAssets(assets)
	for i := range stored {
		stored[i].Symbol = strings.ToUpper(strings.TrimSpace(stored[i].Symbol))
		if stored[i].ID == "" {
			stored[i].ID = uuid.NewString()
		}
		if stored[i].Name == "" {
			stored[i].Name = stored[i].Symbol
		}
		if stored[i].IsStable {
			stored[i].Price = 1
		}
	}

	now := r.now().Unix()
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM assets"); err != nil {
			return fmt.Errorf("failed to clear assets: %w", err)
		}
		for i, a := range stored {
			if err := insertAsset(tx, a, i, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().Int("count", len(stored)).Msg("Asset list replaced")
	return stored, nil
}

// UpdateBalances persists balances for the given assets (matched by ID)
func (r *AssetRepository) UpdateBalances(assets []domain.Asset) error {
	now := r.now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, a := range assets {
			if _, err := tx.Exec(`UPDATE assets SET balance = ?, updated_at = ? WHERE id = ?`,
				a.Balance, now, a.ID); err != nil {
				return fmt.Errorf("failed to update balance for %s: %w", a.Symbol, err)
			}
		}
		return nil
	})
}

// UpdatePrices persists the last known prices so a restart starts priced
func (r *AssetRepository) UpdatePrices(assets []domain.Asset) error {
	now := r.now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, a := range assets {
			if a.Price <= 0 {
				continue
			}
			if _, err := tx.Exec(`UPDATE assets SET price = ?, updated_at = ? WHERE id = ?`,
				a.Price, now, a.ID); err != nil {
				return fmt.Errorf("failed to update price for %s: %w", a.Symbol, err)
			}
		}
		return nil
	})
}

// SeedDefaults inserts DefaultAssets when the table is empty.
// Returns true when a seed happened.
func (r *AssetRepository) SeedDefaults() (bool, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM assets").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count assets: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := r.ReplaceAll(DefaultAssets()); err != nil {
		return false, fmt.Errorf("failed to seed default assets: %w", err)
	}
	r.log.Info().Msg("Seeded default portfolio")
	return true, nil
}

func insertAsset(tx *sql.Tx, a domain.Asset, position int, now int64) error {
	var address interface{}
	if a.Address != "" {
		address = a.Address
	}
	isStable := 0
	if a.IsStable {
		isStable = 1
	}

	_, err := tx.Exec(`INSERT INTO assets
		(id, symbol, name, price, balance, target_allocation, address, is_stable, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Symbol, a.Name, a.Price, a.Balance, a.TargetAllocation,
		address, isStable, position, now)
	if err != nil {
		return fmt.Errorf("failed to insert asset %s: %w", a.Symbol, err)
	}
	return nil
}
