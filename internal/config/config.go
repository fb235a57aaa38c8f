// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/rebalancer/internal/modules/settings"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Directory holding config.db and ledger.db (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	PollInterval     time.Duration
	AlertCooldown    time.Duration
	DustThresholdUSD float64
	PriceCacheTTL    time.Duration

	HyperliquidInfoURL     string
	HyperliquidExchangeURL string
	HyperliquidWSURL       string
	PriceStreamEnabled     bool

	TelegramBotToken string
	TelegramChatID   string

	Backup *BackupConfig
}

// BackupConfig holds ledger backup configuration
type BackupConfig struct {
	Enabled         bool
	Schedule        string // six-field cron spec (with seconds)
	Bucket          string
	Endpoint        string // S3-compatible endpoint; empty means AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from .env and the environment
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("REBALANCER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		PollInterval:     getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
		AlertCooldown:    getEnvAsDuration("ALERT_COOLDOWN", 15*time.Minute),
		DustThresholdUSD: getEnvAsFloat("DUST_THRESHOLD_USD", 10),
		PriceCacheTTL:    getEnvAsDuration("PRICE_CACHE_TTL", 5*time.Second),

		HyperliquidInfoURL:     getEnv("HYPERLIQUID_INFO_URL", "https://api.hyperliquid.xyz"),
		HyperliquidExchangeURL: getEnv("HYPERLIQUID_EXCHANGE_URL", "https://api.hyperliquid-testnet.xyz"),
		HyperliquidWSURL:       getEnv("HYPERLIQUID_WS_URL", "wss://api.hyperliquid.xyz/ws"),
		PriceStreamEnabled:     getEnvAsBool("PRICE_STREAM_ENABLED", false),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
	}
}

// UpdateFromSettings lets non-empty settings DB values for notifier
// credentials win over environment values. Call after config.db is migrated.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	token, err := settingsRepo.Get(settings.KeyTelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to get %s from settings: %w", settings.KeyTelegramBotToken, err)
	}
	if token != nil && *token != "" {
		c.TelegramBotToken = *token
	}

	chatID, err := settingsRepo.Get(settings.KeyTelegramChatID)
	if err != nil {
		return fmt.Errorf("failed to get %s from settings: %w", settings.KeyTelegramChatID, err)
	}
	if chatID != nil && *chatID != "" {
		c.TelegramChatID = *chatID
	}

	return nil
}

// Validate checks that intervals and thresholds are usable
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("GO_PORT out of range: %d", c.Port))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if c.AlertCooldown <= 0 {
		errs = append(errs, fmt.Errorf("ALERT_COOLDOWN must be positive, got %s", c.AlertCooldown))
	}
	if c.PriceCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("PRICE_CACHE_TTL must be positive, got %s", c.PriceCacheTTL))
	}
	if c.DustThresholdUSD < 0 {
		errs = append(errs, fmt.Errorf("DUST_THRESHOLD_USD must not be negative, got %v", c.DustThresholdUSD))
	}
	if c.Backup != nil && c.Backup.Enabled && c.Backup.Bucket == "" {
		errs = append(errs, errors.New("BACKUP_BUCKET is required when BACKUP_ENABLED is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ConfigDBPath returns the path of the settings/assets database
func (c *Config) ConfigDBPath() string {
	return filepath.Join(c.DataDir, "config.db")
}

// LedgerDBPath returns the path of the append-only trade ledger
func (c *Config) LedgerDBPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
