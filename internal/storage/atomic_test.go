package storage_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/storage"
)

func TestAtomicWrites(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	t.Run("concurrent writes different files", func(t *testing.T) {
		var wg sync.WaitGroup
		errors := make(chan error, 10)

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()

				// Create separate store for each goroutine to avoid logger race
				var buf bytes.Buffer
				logger := events.NewTestLogger(events.DebugLevel, "json", &buf)
				concurrentStore, err := storage.NewLocalStore(tmpDir, logger)
				if err != nil {
					errors <- err
					return
				}

				path := fmt.Sprintf("concurrent-%d.txt", n)
				data := fmt.Sprintf("content-%d", n)

				if err := concurrentStore.Write(path, []byte(data)); err != nil {
					errors <- err
				}
			}(i)
		}

		wg.Wait()
		close(errors)

		// Check for errors
		for err := range errors {
			t.Errorf("Write error: %v", err)
		}

		// Verify all files
		for i := 0; i < 10; i++ {
			path := fmt.Sprintf("concurrent-%d.txt", i)
			data, err := store.Read(path)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("content-%d", i), string(data))
		}
	})

	t.Run("write with size limit", func(t *testing.T) {
		// Test within limit
		err := store.Write("small.txt", bytes.Repeat([]byte("a"), 1024))
		assert.NoError(t, err)

		// Test exceeding limit
		store.SetMaxFileSize(1024) // 1KB limit
		err = store.Write("large.txt", bytes.Repeat([]byte("b"), 2048))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "too large")

		// Large file should not exist
		exists, _ := store.Exists("large.txt")
		assert.False(t, exists)
	})

	t.Run("write failure cleanup", func(t *testing.T) {
		// Create a directory where we'll try to write a file
		err := store.EnsureDir("blocker")
		require.NoError(t, err)

		// Try to write a file with the same name (should fail)
		err = store.Write("blocker", []byte("data"))
		assert.Error(t, err)

		// Check no temp files left behind
		files, err := store.ListDir("")
		require.NoError(t, err)

		for _, file := range files {
			assert.False(t, strings.Contains(file.Path, ".tmp."),
				"Found temp file: %s", file.Path)
		}
	})
}

func TestDirectoryOperations(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	t.Run("create nested directories", func(t *testing.T) {
		err := store.EnsureDir("a/b/c/d/e")
		assert.NoError(t, err)

		// Verify all exist
		for _, dir := range []string{"a", "a/b", "a/b/c", "a/b/c/d", "a/b/c/d/e"} {
			info, err := store.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir)
		}
	})

	t.Run("clean empty directories", func(t *testing.T) {
		// Create file in nested directory
		err := store.Write("cleanup/sub/file.txt", []byte("data"))
		require.NoError(t, err)

		// Delete file
		err = store.Delete("cleanup/sub/file.txt")
		require.NoError(t, err)

		// Empty directories should be cleaned
		exists, _ := store.Exists("cleanup/sub")
		assert.False(t, exists)
		exists, _ = store.Exists("cleanup")
		assert.False(t, exists)
	})

	t.Run("delete missing file is not an error", func(t *testing.T) {
		err := store.Delete("never-written.txt")
		assert.NoError(t, err)
	})
}

func TestSetModTime(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	err = store.Write("stamped.md", []byte("content"))
	require.NoError(t, err)

	want := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	err = store.SetModTime("stamped.md", want)
	require.NoError(t, err)

	info, err := store.Stat("stamped.md")
	require.NoError(t, err)
	assert.True(t, info.ModTime.Equal(want), "got %v, want %v", info.ModTime, want)
}
