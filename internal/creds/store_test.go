package creds

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

func testLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// stubMachine pins the machine secret for the test's duration.
func stubMachine(t *testing.T, secret string) {
	t.Helper()

	orig := machineSecret
	machineSecret = func() ([]byte, error) {
		return []byte(secret), nil
	}
	t.Cleanup(func() { machineSecret = orig })
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "auth", "credentials.json"), testLogger())
}

func TestStoreRoundTrip(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	saved := &Credentials{
		Token:   "tok_4f2a9b",
		Email:   "dev@example.com",
		SavedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved.Token, loaded.Token)
	assert.Equal(t, saved.Email, loaded.Email)
	assert.True(t, saved.SavedAt.Equal(loaded.SavedAt))
}

func TestStoreFilePermissions(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	require.NoError(t, store.Save(&Credentials{Token: "tok"}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreTokenNotOnDisk(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	require.NoError(t, store.Save(&Credentials{Token: "tok_plaintext_marker"}))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "tok_plaintext_marker")
}

func TestStoreLoadMissing(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	_, err := store.Load()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestStoreRejectsOtherMachine(t *testing.T) {
	store := newTestStore(t)

	stubMachine(t, "machine-a")
	require.NoError(t, store.Save(&Credentials{Token: "tok"}))

	stubMachine(t, "machine-b")
	_, err := store.Load()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestStoreSaltedSaves(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	c := &Credentials{Token: "tok"}
	require.NoError(t, store.Save(c))
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	require.NoError(t, store.Save(c))
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	// Same token, different salt, different file.
	assert.NotEqual(t, first, second)
}

func TestStoreClear(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	require.NoError(t, store.Save(&Credentials{Token: "tok"}))
	require.NoError(t, store.Clear())

	_, err := store.Load()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestStoreCorruptFile(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte("not json"), 0o600))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse credentials file")
}

func TestStoreUnsupportedVersion(t *testing.T) {
	stubMachine(t, "machine-a")
	store := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"version":99,"salt":"","payload":""}`), 0o600))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported credentials version")
}
