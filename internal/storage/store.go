// Package storage manages the document files under one session root.
package storage

import (
	"fmt"
	gopath "path"
	"strings"
	"time"
)

// Store performs local file operations with vault-relative paths.
type Store interface {
	// Read retrieves file contents.
	Read(path string) ([]byte, error)

	// Write saves data to a file atomically.
	Write(path string, data []byte) error

	// Delete removes a file and prunes empty parent directories.
	Delete(path string) error

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// SetModTime updates file modification time.
	SetModTime(path string, modTime time.Time) error

	// EnsureDir creates a directory if it doesn't exist.
	EnsureDir(path string) error

	// ListDir returns directory contents.
	ListDir(path string) ([]FileInfo, error)

	// WriteConflictCopy writes data beside path under a conflict name
	// and returns the name it chose.
	WriteConflictCopy(path string, data []byte) (string, error)
}

// FileInfo contains file metadata.
type FileInfo struct {
	Path      string
	Size      int64
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool
}

// ConflictCopyName derives the sibling name used when both sides changed
// and neither may be overwritten, e.g. "note.conflict-20240131-093045.md".
func ConflictCopyName(path string, now time.Time) string {
	ext := gopath.Ext(path)
	name := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s.conflict-%s%s", name, now.Format("20060102-150405"), ext)
}
