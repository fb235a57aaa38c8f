package settings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/rs/zerolog"
)

// Service exposes typed strategy settings backed by the key/value repository.
// Reads are served from an in-memory copy refreshed on every write.
type Service struct {
	repo         *Repository
	eventManager *events.Manager
	log          zerolog.Logger

	mu       sync.RWMutex
	fallback domain.Settings
	current  domain.Settings
}

// NewService creates a settings service. fallback supplies values (typically
// from the environment) for keys that were never stored.
func NewService(repo *Repository, fallback domain.Settings, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		eventManager: eventManager,
		log:          log.With().Str("service", "settings").Logger(),
		fallback:     mergeDefaults(fallback),
		current:      mergeDefaults(fallback),
	}
}

// Current returns a copy of the active settings
func (s *Service) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SeedDefaults writes default values for keys that have never been set
func (s *Service) SeedDefaults() error {
	defaults := map[string]string{
		KeyDeltaThreshold:       formatFloat(DefaultDeltaThreshold),
		KeyVenue:                string(DefaultVenue),
		KeyAutoExecute:          strconv.FormatBool(DefaultAutoExecute),
		KeyUniswapRouterAddress: DefaultUniswapRouterAddress,
		KeyXautTokenAddress:     DefaultXautTokenAddress,
	}

	for key, value := range defaults {
		existing, err := s.repo.Get(key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		desc := SettingDescriptions[key]
		if err := s.repo.Set(key, value, &desc); err != nil {
			return err
		}
		s.log.Debug().Str("key", key).Str("value", value).Msg("Seeded default setting")
	}
	return nil
}

// Load refreshes the in-memory copy from the repository
func (s *Service) Load() (domain.Settings, error) {
	stored, err := s.repo.GetAll()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.fallback
	if v, ok := stored[KeyDeltaThreshold]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			next.DeltaThreshold = f
		} else {
			s.log.Warn().Str("value", v).Msg("Ignoring invalid stored delta threshold")
		}
	}
	if v, ok := stored[KeyVenue]; ok {
		if venue := domain.Venue(strings.ToUpper(strings.TrimSpace(v))); venue.IsValid() {
			next.Venue = venue
		} else {
			s.log.Warn().Str("value", v).Msg("Ignoring unknown stored venue")
		}
	}
	if v, ok := stored[KeyAutoExecute]; ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			next.AutoExecute = b
		}
	}
	overrideString(stored, KeyPrivateKey, &next.PrivateKey)
	overrideString(stored, KeyHyperliquidWalletAddress, &next.HyperliquidWalletAddress)
	overrideString(stored, KeyUniswapRouterAddress, &next.UniswapRouterAddress)
	overrideString(stored, KeyXautTokenAddress, &next.XautTokenAddress)
	overrideString(stored, KeyTelegramBotToken, &next.TelegramBotToken)
	overrideString(stored, KeyTelegramChatID, &next.TelegramChatID)

	s.current = next
	return next, nil
}

// Update validates and persists a partial update, then reloads
func (s *Service) Update(update SettingsUpdate) (domain.Settings, error) {
	values, err := update.values()
	if err != nil {
		return domain.Settings{}, err
	}
	if len(values) == 0 {
		return s.Current(), nil
	}

	if err := s.repo.SetMany(values); err != nil {
		return domain.Settings{}, err
	}

	next, err := s.Load()
	if err != nil {
		return domain.Settings{}, err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	s.log.Info().Strs("keys", keys).Msg("Settings updated")
	s.eventManager.EmitTyped("settings", &events.SettingsChangedData{Keys: keys})

	return next, nil
}

func (u SettingsUpdate) values() (map[string]string, error) {
	values := make(map[string]string)

	if u.DeltaThreshold != nil {
		if *u.DeltaThreshold <= 0 {
			return nil, fmt.Errorf("%w: delta_threshold must be > 0", ErrInvalidSettings)
		}
		values[KeyDeltaThreshold] = formatFloat(*u.DeltaThreshold)
	}
	if u.Venue != nil {
		venue := domain.Venue(strings.ToUpper(strings.TrimSpace(*u.Venue)))
		if !venue.IsValid() {
			return nil, fmt.Errorf("%w: unknown venue %q", ErrInvalidSettings, *u.Venue)
		}
		values[KeyVenue] = string(venue)
	}
	if u.AutoExecute != nil {
		values[KeyAutoExecute] = strconv.FormatBool(*u.AutoExecute)
	}

	strs := map[string]*string{
		KeyPrivateKey:               u.PrivateKey,
		KeyHyperliquidWalletAddress: u.HyperliquidWalletAddress,
		KeyUniswapRouterAddress:     u.UniswapRouterAddress,
		KeyXautTokenAddress:         u.XautTokenAddress,
		KeyTelegramBotToken:         u.TelegramBotToken,
		KeyTelegramChatID:           u.TelegramChatID,
	}
	for key, v := range strs {
		if v != nil {
			values[key] = strings.TrimSpace(*v)
		}
	}

	return values, nil
}

func overrideString(stored map[string]string, key string, target *string) {
	if v, ok := stored[key]; ok && v != "" {
		*target = v
	}
}

func mergeDefaults(s domain.Settings) domain.Settings {
	d := Defaults()
	if s.DeltaThreshold > 0 {
		d.DeltaThreshold = s.DeltaThreshold
	}
	if s.Venue.IsValid() {
		d.Venue = s.Venue
	}
	d.AutoExecute = d.AutoExecute || s.AutoExecute
	if s.UniswapRouterAddress != "" {
		d.UniswapRouterAddress = s.UniswapRouterAddress
	}
	if s.XautTokenAddress != "" {
		d.XautTokenAddress = s.XautTokenAddress
	}
	d.PrivateKey = s.PrivateKey
	d.HyperliquidWalletAddress = s.HyperliquidWalletAddress
	d.TelegramBotToken = s.TelegramBotToken
	d.TelegramChatID = s.TelegramChatID
	return d
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
