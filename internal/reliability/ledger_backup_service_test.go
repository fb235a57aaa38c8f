package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/events"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Key: key, SizeBytes: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func archiveEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := make(map[string][]byte)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = body
	}
	return entries
}

func TestLedgerBackupService_CreateAndUpload(t *testing.T) {
	ledgerDB, cleanupLedger := testingpkg.NewTestDB(t, "ledger")
	defer cleanupLedger()
	configDB, cleanupConfig := testingpkg.NewTestDB(t, "config")
	defer cleanupConfig()

	bus := events.NewBus()
	var completed *events.BackupCompletedData
	bus.Subscribe(events.BackupCompleted, func(e *events.Event) {
		completed = e.Data.(*events.BackupCompletedData)
	})

	store := newMemoryStore()
	svc := NewLedgerBackupService(store, ledgerDB, configDB, t.TempDir(), events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	svc.now = testingpkg.FixedClock()

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rebalancer-backup-2026-03-14-093000.tar.gz", key)

	entries := archiveEntries(t, store.objects[key])
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"backup-metadata.json", "config.db", "ledger.db"}, names)

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(entries["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "config", metadata.Databases[0].Name)
	assert.Equal(t, "ledger", metadata.Databases[1].Name)
	assert.Contains(t, metadata.Databases[1].Checksum, "sha256:")
	assert.Equal(t, int64(len(entries["ledger.db"])), metadata.Databases[1].SizeBytes)

	require.NotNil(t, completed)
	assert.Equal(t, key, completed.Key)
}

func TestLedgerBackupService_UploadFailure(t *testing.T) {
	ledgerDB, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	store := newMemoryStore()
	store.uploadErr = errors.New("access denied")
	svc := NewLedgerBackupService(store, ledgerDB, nil, t.TempDir(), nil, zerolog.Nop())

	_, err := svc.CreateAndUpload(context.Background())
	assert.ErrorContains(t, err, "access denied")
}

func TestLedgerBackupService_ListAndRotate(t *testing.T) {
	store := newMemoryStore()
	base := testingpkg.FixedTime
	for days := 0; days < 6; days++ {
		key := backupPrefix + base.AddDate(0, 0, -days*10).Format(backupTimeLayout) + backupSuffix
		store.objects[key] = []byte("x")
	}
	store.objects["unrelated.txt"] = []byte("x")
	store.objects[backupPrefix+"garbage"+backupSuffix] = []byte("x")

	svc := NewLedgerBackupService(store, nil, nil, t.TempDir(), nil, zerolog.Nop())
	svc.now = func() time.Time { return base }

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 6)
	assert.True(t, backups[0].Timestamp.Equal(base))
	assert.Equal(t, int64(240), backups[1].AgeHours)

	deleted, err := svc.RotateOldBackups(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted, "ages 30, 40 and 50 days go; the three newest stay")

	backups, err = svc.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backups, 3)

	deleted, err = svc.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
