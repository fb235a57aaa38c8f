/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency of the rebalancer. It is
 * built by Wire() and handed to the HTTP server and the CLI commands.
 */
package di

import (
	"github.com/aristath/rebalancer/internal/clients/hyperliquid"
	"github.com/aristath/rebalancer/internal/clients/telegram"
	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/aristath/rebalancer/internal/modules/settings"
	"github.com/aristath/rebalancer/internal/modules/trading"
	"github.com/aristath/rebalancer/internal/reliability"
	"github.com/aristath/rebalancer/internal/scheduler"
	"github.com/aristath/rebalancer/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	ConfigDB *database.DB // settings, assets
	LedgerDB *database.DB // append-only trade receipts

	// Infrastructure
	EventBus     *events.Bus
	EventManager *events.Manager
	Metrics      *metrics.Registry

	// Repositories
	SettingsRepo *settings.Repository
	AssetRepo    *portfolio.AssetRepository
	TradeLogRepo *trading.TradeLogRepository

	// Clients
	HyperliquidInfo     *hyperliquid.InfoClient
	HyperliquidExchange *hyperliquid.ExchangeClient
	MidsStream          *hyperliquid.MidsStream // nil unless PRICE_STREAM_ENABLED
	TelegramClient      *telegram.Client

	// Services
	SettingsService *settings.Service
	Book            *portfolio.Book
	PriceService    *services.PriceService
	Notifier        *services.TelegramNotifier
	ExecutorRouter  *trading.Router
	Engine          *rebalancing.Engine
	Cooldown        *rebalancing.AlertCooldown
	Orchestrator    *rebalancing.Orchestrator
	BackupService   *reliability.LedgerBackupService // nil unless backups are enabled

	// Background work
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	MarketCycle    *scheduler.MarketCycleJob
	DatabaseHealth *scheduler.DatabaseHealthJob
	LedgerBackup   *scheduler.LedgerBackupJob // nil unless backups are enabled
}

// Close releases the databases
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.ConfigDB != nil {
		c.ConfigDB.Close()
	}
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
}
