package scan_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/ignore"
	"github.com/lsvault/lsvault/internal/scan"
	"github.com/lsvault/lsvault/internal/transport"
)

func newRemoteScanner(t *testing.T, api *transport.MockVault, extra []string) *scan.RemoteScanner {
	t.Helper()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)
	return scan.NewRemoteScanner(api, "vault-1", ignore.NewMatcher(extra, t.TempDir()), logger)
}

func TestRemoteScan(t *testing.T) {
	api := transport.NewMockVault()
	modified := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)
	api.SeedDocument("vault-1", "daily.md", []byte("# Today"), modified)
	api.SeedDocument("vault-1", "projects/plan.md", []byte("## Plan"), modified)

	scanner := newRemoteScanner(t, api, nil)
	snapshot, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot, 2)
	state := snapshot["daily.md"]
	assert.Equal(t, "daily.md", state.Path)
	assert.NotEmpty(t, state.Hash)
	assert.Equal(t, int64(len("# Today")), state.Size)
	assert.True(t, state.MTime.Equal(modified))
}

func TestRemoteScanFiltersIgnored(t *testing.T) {
	api := transport.NewMockVault()
	now := time.Now().UTC()
	api.SeedDocument("vault-1", "keep.md", []byte("keep"), now)
	api.SeedDocument("vault-1", "private/secret.md", []byte("hide"), now)
	api.SeedDocument("vault-1", ".git/config.md", []byte("cruft"), now)

	scanner := newRemoteScanner(t, api, []string{"private/"})
	snapshot, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, "keep.md")
}

func TestRemoteScanSkipsNonDocuments(t *testing.T) {
	api := transport.NewMockVault()
	now := time.Now().UTC()
	api.SeedDocument("vault-1", "note.md", []byte("note"), now)
	api.SeedDocument("vault-1", "attachment.pdf", []byte("blob"), now)

	scanner := newRemoteScanner(t, api, nil)
	snapshot, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, "note.md")
}

func TestRemoteScanHashlessListing(t *testing.T) {
	api := transport.NewMockVault()
	api.OmitListingHashes = true
	modified := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)
	api.SeedDocument("vault-1", "daily.md", []byte("# Today"), modified)

	scanner := newRemoteScanner(t, api, nil)
	snapshot, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	state := snapshot["daily.md"]
	assert.False(t, state.HasHash())
	assert.True(t, state.MTime.Equal(modified))
}

func TestRemoteScanListError(t *testing.T) {
	api := transport.NewMockVault()
	api.ListErr = assert.AnError

	scanner := newRemoteScanner(t, api, nil)
	_, err := scanner.Scan(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
