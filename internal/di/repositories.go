// Package di provides dependency injection for repositories.
package di

import (
	"fmt"

	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/settings"
	"github.com/aristath/rebalancer/internal/modules/trading"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories and seeds first-run data
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.SettingsRepo = settings.NewRepository(container.ConfigDB.Conn(), log)
	container.AssetRepo = portfolio.NewAssetRepository(container.ConfigDB.Conn(), log)
	container.TradeLogRepo = trading.NewTradeLogRepository(container.LedgerDB.Conn(), log)

	if _, err := container.AssetRepo.SeedDefaults(); err != nil {
		return err
	}

	return nil
}
