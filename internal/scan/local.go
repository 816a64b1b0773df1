// Package scan produces current snapshots of both sides of a sync
// pairing for the diff engine to compare.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/ignore"
	"github.com/lsvault/lsvault/internal/models"
)

// LocalScanner walks a session's local root and snapshots every tracked
// document. Hashes are cached between scans keyed on size and mtime, so
// an unchanged tree rescans without rereading content.
type LocalScanner struct {
	root    string
	matcher *ignore.Matcher
	logger  *events.Logger

	mu       sync.Mutex
	lastScan map[string]models.FileState
}

// NewLocalScanner creates a scanner rooted at root.
func NewLocalScanner(root string, matcher *ignore.Matcher, logger *events.Logger) *LocalScanner {
	return &LocalScanner{
		root:     root,
		matcher:  matcher,
		logger:   logger.WithField("component", "local_scanner"),
		lastScan: make(map[string]models.FileState),
	}
}

// Root returns the scanner's local root directory.
func (s *LocalScanner) Root() string {
	return s.root
}

// Scan walks the root and returns the current local snapshot. Ignored
// directories are pruned from traversal, not filtered afterwards. A
// missing root yields an empty snapshot.
func (s *LocalScanner) Scan(ctx context.Context) (map[string]models.FileState, error) {
	snapshot := make(map[string]models.FileState)

	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		s.logger.WithField("root", s.root).Debug("Local root does not exist")
		return snapshot, nil
	}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		rel = models.NormalizePath(rel)

		if d.IsDir() {
			if s.matcher.Match(rel + "/") {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if !models.IsDocumentPath(rel) || s.matcher.Match(rel) {
			return nil
		}

		state, err := s.fileState(path, rel, d)
		if err != nil {
			s.logger.WithError(err).WithField("path", rel).Warn("Skipping unreadable file")
			return nil
		}

		snapshot[rel] = state
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local scan failed: %w", err)
	}

	s.mu.Lock()
	s.lastScan = snapshot
	s.mu.Unlock()

	s.logger.WithField("files", len(snapshot)).Debug("Local scan complete")
	return snapshot, nil
}

// ScanFile snapshots a single document by its vault-relative path. The
// second return reports whether the file exists.
func (s *LocalScanner) ScanFile(relPath string) (models.FileState, bool, error) {
	rel := models.NormalizePath(relPath)
	fullPath := filepath.Join(s.root, filepath.FromSlash(rel))

	info, err := os.Lstat(fullPath)
	if os.IsNotExist(err) {
		return models.FileState{}, false, nil
	}
	if err != nil {
		return models.FileState{}, false, fmt.Errorf("stat %s: %w", rel, err)
	}

	if !info.Mode().IsRegular() {
		return models.FileState{}, false, nil
	}

	if cached, ok := s.cached(rel, info.Size(), info); ok {
		return cached, true, nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return models.FileState{}, false, fmt.Errorf("read %s: %w", rel, err)
	}

	state := models.NewLocalFileState(rel, content, info.ModTime())

	s.mu.Lock()
	s.lastScan[rel] = state
	s.mu.Unlock()

	return state, true, nil
}

// fileState builds one snapshot entry, reusing the previous hash when
// size and mtime both match the last scan.
func (s *LocalScanner) fileState(fullPath, rel string, d fs.DirEntry) (models.FileState, error) {
	info, err := d.Info()
	if err != nil {
		return models.FileState{}, err
	}

	if cached, ok := s.cached(rel, info.Size(), info); ok {
		return cached, nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return models.FileState{}, err
	}

	return models.NewLocalFileState(rel, content, info.ModTime()), nil
}

func (s *LocalScanner) cached(rel string, size int64, info fs.FileInfo) (models.FileState, bool) {
	s.mu.Lock()
	prev, ok := s.lastScan[rel]
	s.mu.Unlock()

	if ok && prev.Size == size && prev.MTime.Equal(info.ModTime().UTC()) {
		return prev, true
	}
	return models.FileState{}, false
}
