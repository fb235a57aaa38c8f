// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/clients/hyperliquid"
	"github.com/aristath/rebalancer/internal/clients/marketdata"
	"github.com/aristath/rebalancer/internal/clients/telegram"
	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/aristath/rebalancer/internal/modules/settings"
	"github.com/aristath/rebalancer/internal/modules/trading"
	"github.com/aristath/rebalancer/internal/reliability"
	"github.com/aristath/rebalancer/internal/services"
	"github.com/rs/zerolog"
)

// streamMaxAge is how old a streamed mids snapshot may be before HTTP is used
const streamMaxAge = 10 * time.Second

// InitializeServices creates clients and services. Repositories must exist.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Infrastructure
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Metrics = metrics.NewRegistry()

	// Settings: stored values win, env credentials fill the gaps
	if err := cfg.UpdateFromSettings(container.SettingsRepo); err != nil {
		return fmt.Errorf("failed to apply stored settings to config: %w", err)
	}
	fallback := settings.Defaults()
	fallback.TelegramBotToken = cfg.TelegramBotToken
	fallback.TelegramChatID = cfg.TelegramChatID
	container.SettingsService = settings.NewService(container.SettingsRepo, fallback, container.EventManager, log)
	if err := container.SettingsService.SeedDefaults(); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}
	if _, err := container.SettingsService.Load(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Portfolio snapshot
	assets, err := container.AssetRepo.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}
	container.Book = portfolio.NewBook(assets)

	// Market data
	container.HyperliquidInfo = hyperliquid.NewInfoClient(cfg.HyperliquidInfoURL, log)
	var stream services.MidsStreamReader
	if cfg.PriceStreamEnabled {
		container.MidsStream = hyperliquid.NewMidsStream(cfg.HyperliquidWSURL, log)
		stream = container.MidsStream
	}
	container.PriceService = services.NewPriceService([]marketdata.Provider{
		services.NewHyperliquidProvider(container.HyperliquidInfo, stream, streamMaxAge),
		marketdata.NewCryptoCompareClient("", log),
		marketdata.NewCoinCapClient("", log),
		marketdata.NewCoinGeckoClient("", log),
	}, cfg.PriceCacheTTL, container.Metrics, log)

	// Notifications
	container.TelegramClient = telegram.NewClient("", log)
	container.Notifier = services.NewTelegramNotifier(container.TelegramClient, container.SettingsService, log)

	// Execution venues. Signing keys stay outside the process, so orders go
	// out unsigned and swaps have no submitter; without a credential every
	// venue simulates.
	container.HyperliquidExchange = hyperliquid.NewExchangeClient(cfg.HyperliquidExchangeURL, nil, log)
	container.ExecutorRouter = trading.NewRouter(log)
	container.ExecutorRouter.Register(domain.VenueHyperliquid,
		trading.NewHyperliquidExecutor(container.HyperliquidInfo, container.HyperliquidExchange, log))
	container.ExecutorRouter.Register(domain.VenueUniswapMainnet,
		trading.NewUniswapExecutor(domain.VenueUniswapMainnet, nil, log))
	container.ExecutorRouter.Register(domain.VenueUniswapTestnet,
		trading.NewUniswapExecutor(domain.VenueUniswapTestnet, nil, log))

	// Rebalancing core
	container.Engine = rebalancing.NewEngine(cfg.DustThresholdUSD, time.Now)
	container.Cooldown = rebalancing.NewAlertCooldown(cfg.AlertCooldown)
	container.Orchestrator = rebalancing.NewOrchestrator(rebalancing.OrchestratorDeps{
		Executor: container.ExecutorRouter,
		TradeLog: container.TradeLogRepo,
		Notifier: container.Notifier,
		Cooldown: container.Cooldown,
		Book:     container.Book,
		Balances: container.AssetRepo,
		Events:   container.EventManager,
		Metrics:  container.Metrics,
	}, log)
	if err := container.Orchestrator.RefreshTrades(ctx); err != nil {
		return fmt.Errorf("failed to load trade history: %w", err)
	}

	// Ledger backup
	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Store(ctx, reliability.S3StoreConfig{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewLedgerBackupService(
			store, container.LedgerDB, container.ConfigDB, cfg.DataDir, container.EventManager, log)
	}

	log.Info().
		Int("assets", len(assets)).
		Strs("venues", venueNames(container.ExecutorRouter.Venues())).
		Bool("price_stream", container.MidsStream != nil).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")

	return nil
}

func venueNames(venues []domain.Venue) []string {
	out := make([]string, len(venues))
	for i, v := range venues {
		out[i] = string(v)
	}
	return out
}
