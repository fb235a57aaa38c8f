package settings

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSettingsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			description TEXT,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	return db
}

func TestRepository_GetMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupSettingsDB(t), zerolog.Nop())

	value, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRepository_SetUpserts(t *testing.T) {
	repo := NewRepository(setupSettingsDB(t), zerolog.Nop())

	desc := "drift trigger"
	require.NoError(t, repo.Set(KeyDeltaThreshold, "5", &desc))
	require.NoError(t, repo.Set(KeyDeltaThreshold, "7.5", nil))

	value, err := repo.Get(KeyDeltaThreshold)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "7.5", *value)

	f, err := repo.GetFloat(KeyDeltaThreshold, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.5, f)
}

func TestRepository_TypedGetters(t *testing.T) {
	repo := NewRepository(setupSettingsDB(t), zerolog.Nop())

	require.NoError(t, repo.SetMany(map[string]string{
		KeyAutoExecute:    "yes",
		KeyDeltaThreshold: "not-a-number",
		KeyTelegramChatID: "42",
	}))

	b, err := repo.GetBool(KeyAutoExecute, false)
	require.NoError(t, err)
	assert.True(t, b)

	f, err := repo.GetFloat(KeyDeltaThreshold, 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, f, "unparseable values fall back to the default")

	s, err := repo.GetString(KeyTelegramChatID, "")
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	s, err = repo.GetString(KeyVenue, "HYPERLIQUID")
	require.NoError(t, err)
	assert.Equal(t, "HYPERLIQUID", s)
}

func TestRepository_GetAllAndDelete(t *testing.T) {
	repo := NewRepository(setupSettingsDB(t), zerolog.Nop())

	require.NoError(t, repo.Set("a", "1", nil))
	require.NoError(t, repo.Set("b", "2", nil))
	require.NoError(t, repo.Delete("a"))
	require.NoError(t, repo.Delete("never-existed"))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, all)
}
