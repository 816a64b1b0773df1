package storage_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/storage"
)

func TestConflictCopyName(t *testing.T) {
	now := time.Date(2024, 1, 31, 9, 30, 45, 0, time.UTC)

	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "markdown file",
			path: "notes/daily.md",
			want: "notes/daily.conflict-20240131-093045.md",
		},
		{
			name: "no extension",
			path: "README",
			want: "README.conflict-20240131-093045",
		},
		{
			name: "multiple dots",
			path: "archive/notes.2023.md",
			want: "archive/notes.2023.conflict-20240131-093045.md",
		},
		{
			name: "root level",
			path: "todo.txt",
			want: "todo.conflict-20240131-093045.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storage.ConflictCopyName(tt.path, now))
		})
	}
}

func TestWriteConflictCopy(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	path := "notes/daily.md"

	err = store.Write(path, []byte("local version"))
	require.NoError(t, err)

	conflictPath, err := store.WriteConflictCopy(path, []byte("remote version"))
	require.NoError(t, err)
	assert.Contains(t, conflictPath, "notes/daily.conflict-")
	assert.True(t, strings.HasSuffix(conflictPath, ".md"))

	// Original untouched
	data, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "local version", string(data))

	// Copy holds the other side
	data, err = store.Read(conflictPath)
	require.NoError(t, err)
	assert.Equal(t, "remote version", string(data))
}

func TestMockStoreFaults(t *testing.T) {
	store := storage.NewMockStore()

	t.Run("write fails then recovers", func(t *testing.T) {
		wantErr := assert.AnError
		store.FailWrite("flaky.md", 2, wantErr)

		assert.ErrorIs(t, store.Write("flaky.md", []byte("x")), wantErr)
		assert.ErrorIs(t, store.Write("flaky.md", []byte("x")), wantErr)
		assert.NoError(t, store.Write("flaky.md", []byte("x")))
		assert.Equal(t, 3, store.WriteCount("flaky.md"))
	})

	t.Run("read fault", func(t *testing.T) {
		require.NoError(t, store.Write("present.md", []byte("x")))
		store.FailRead("present.md", assert.AnError)

		_, err := store.Read("present.md")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("delete fault", func(t *testing.T) {
		require.NoError(t, store.Write("locked.md", []byte("x")))
		store.FailDelete("locked.md", assert.AnError)

		assert.ErrorIs(t, store.Delete("locked.md"), assert.AnError)
		assert.True(t, store.FileExists("locked.md"))
	})
}
