package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:            t.TempDir(),
		Port:               8001,
		PollInterval:       5 * time.Second,
		AlertCooldown:      15 * time.Minute,
		DustThresholdUSD:   10,
		PriceCacheTTL:      5 * time.Second,
		HyperliquidInfoURL: "http://127.0.0.1:1",
		TelegramBotToken:   "env-token",
		TelegramChatID:     "env-chat",
		Backup:             &config.BackupConfig{Schedule: "0 0 3 * * *"},
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.ConfigDB)
	assert.NotNil(t, container.LedgerDB)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "config.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "ledger.db"))
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.PriceService)
	assert.NotNil(t, container.Orchestrator)
	assert.Nil(t, container.MidsStream, "stream is opt-in")
	assert.Nil(t, container.BackupService, "backups are opt-in")
	assert.ElementsMatch(t,
		[]domain.Venue{domain.VenueHyperliquid, domain.VenueUniswapMainnet, domain.VenueUniswapTestnet},
		container.ExecutorRouter.Venues())

	require.NotNil(t, jobs.MarketCycle)
	assert.NotNil(t, jobs.DatabaseHealth)
	assert.Nil(t, jobs.LedgerBackup)

	// First start seeds the default portfolio and settings
	snapshot := container.Book.Snapshot()
	require.Len(t, snapshot, 3)
	current := container.SettingsService.Current()
	assert.Equal(t, settings.DefaultDeltaThreshold, current.DeltaThreshold)
	assert.Equal(t, domain.VenueHyperliquid, current.Venue)
	assert.Equal(t, "env-token", current.TelegramBotToken)
}

func TestWire_StoredCredentialsWin(t *testing.T) {
	cfg := testConfig(t)

	first, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.SettingsRepo.Set(settings.KeyTelegramBotToken, "stored-token", nil))
	first.Close()

	second, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(second.Close)

	assert.Equal(t, "stored-token", cfg.TelegramBotToken)
	assert.Equal(t, "stored-token", second.SettingsService.Current().TelegramBotToken)
	assert.Len(t, second.Book.Snapshot(), 3, "seeding runs once")
}

func TestEverySpec(t *testing.T) {
	assert.Equal(t, "@every 5s", everySpec(5*time.Second))
	assert.Equal(t, "@every 1m30s", everySpec(90*time.Second))
}
