package settings

import (
	"errors"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, fallback domain.Settings) (*Service, *events.Bus) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "config")
	t.Cleanup(cleanup)

	bus := events.NewBus()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	return NewService(repo, fallback, events.NewManager(bus, zerolog.Nop()), zerolog.Nop()), bus
}

func ptr[T any](v T) *T { return &v }

func TestService_DefaultsOnFreshDatabase(t *testing.T) {
	svc, _ := newTestService(t, domain.Settings{})
	require.NoError(t, svc.SeedDefaults())

	current, err := svc.Load()
	require.NoError(t, err)
	assert.Equal(t, 5.0, current.DeltaThreshold)
	assert.Equal(t, domain.VenueHyperliquid, current.Venue)
	assert.False(t, current.AutoExecute)
	assert.Equal(t, DefaultXautTokenAddress, current.XautTokenAddress)
	assert.False(t, current.HasSigningCredential())
}

func TestService_SeedDefaultsKeepsExistingValues(t *testing.T) {
	svc, _ := newTestService(t, domain.Settings{})

	_, err := svc.Update(SettingsUpdate{DeltaThreshold: ptr(3.0)})
	require.NoError(t, err)
	require.NoError(t, svc.SeedDefaults())

	current, err := svc.Load()
	require.NoError(t, err)
	assert.Equal(t, 3.0, current.DeltaThreshold)
}

func TestService_UpdatePersistsAndEmits(t *testing.T) {
	svc, bus := newTestService(t, domain.Settings{})

	var emitted *events.Event
	bus.Subscribe(events.SettingsChanged, func(e *events.Event) { emitted = e })

	updated, err := svc.Update(SettingsUpdate{
		AutoExecute: ptr(true),
		Venue:       ptr("uniswap_testnet"),
		PrivateKey:  ptr("0xabc"),
	})
	require.NoError(t, err)
	assert.True(t, updated.AutoExecute)
	assert.Equal(t, domain.VenueUniswapTestnet, updated.Venue)
	assert.True(t, updated.HasSigningCredential())
	assert.Equal(t, updated, svc.Current())

	require.NotNil(t, emitted)
	assert.ElementsMatch(t,
		[]string{KeyAutoExecute, KeyVenue, KeyPrivateKey},
		emitted.Data.(*events.SettingsChangedData).Keys)
}

func TestService_UpdateRejectsInvalidValues(t *testing.T) {
	svc, _ := newTestService(t, domain.Settings{})

	_, err := svc.Update(SettingsUpdate{DeltaThreshold: ptr(0.0)})
	assert.True(t, errors.Is(err, ErrInvalidSettings))

	_, err = svc.Update(SettingsUpdate{Venue: ptr("BINANCE")})
	assert.True(t, errors.Is(err, ErrInvalidSettings))

	assert.Equal(t, 5.0, svc.Current().DeltaThreshold)
}

func TestService_FallbackCredentialsUntilStored(t *testing.T) {
	svc, _ := newTestService(t, domain.Settings{TelegramBotToken: "env-token", TelegramChatID: "env-chat"})

	current, err := svc.Load()
	require.NoError(t, err)
	assert.True(t, current.NotifierConfigured())
	assert.Equal(t, "env-token", current.TelegramBotToken)

	current, err = svc.Update(SettingsUpdate{TelegramBotToken: ptr("db-token")})
	require.NoError(t, err)
	assert.Equal(t, "db-token", current.TelegramBotToken)
	assert.Equal(t, "env-chat", current.TelegramChatID)
}

func TestNewSettingsView_RedactsCredentials(t *testing.T) {
	view := NewSettingsView(domain.Settings{
		DeltaThreshold:   5,
		Venue:            domain.VenueHyperliquid,
		PrivateKey:       "0xsecret",
		TelegramBotToken: "token",
		TelegramChatID:   "1",
	})

	assert.True(t, view.HasPrivateKey)
	assert.True(t, view.HasTelegramBotToken)
	assert.True(t, view.NotifierConfigured)
	assert.Equal(t, "HYPERLIQUID", view.Venue)
}
