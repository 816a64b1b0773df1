package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// TestVault builds a vault with a fixed creation time.
func TestVault(id, name string) models.Vault {
	return models.Vault{
		ID:        id,
		Name:      name,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

// MarkdownNote renders a deterministic note body.
func MarkdownNote(title string, paragraphs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	for _, p := range paragraphs {
		b.WriteString("\n")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}

// WriteLocalTree writes files (vault-relative path to content) under
// root, creating directories as needed.
func WriteLocalTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// AssertLocalTree checks that every expected file exists under root
// with exactly the expected content.
func AssertLocalTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		data, err := os.ReadFile(full)
		require.NoError(t, err, "missing file %s", path)
		require.Equal(t, content, string(data), "content mismatch for %s", path)
	}
}

// SeedVault stores files directly on the server, stamped at the given
// time, without emitting feed events.
func SeedVault(server *FakeVaultServer, vaultID string, files map[string]string, at time.Time) {
	for path, content := range files {
		server.SeedDocument(vaultID, path, []byte(content), at)
	}
}

// SampleNotes is a small tree exercising nested directories and
// non-ASCII paths.
var SampleNotes = map[string]string{
	"welcome.md":           MarkdownNote("Welcome", "Getting started with the vault."),
	"daily/2024-01-15.md":  MarkdownNote("Monday", "Standup notes.", "Review the sync design."),
	"daily/2024-01-16.md":  MarkdownNote("Tuesday", "Wrote the executor tests."),
	"projects/résumé.md":   MarkdownNote("Résumé", "Unicode paths must round-trip."),
	"projects/ideas.md":    MarkdownNote("Ideas", "A list of things to build."),
	"archive/old notes.md": MarkdownNote("Old Notes", "Spaces in names are legal."),
}
