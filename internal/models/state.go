package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncState is the baseline recorded after the last successful
// reconciliation of one local-directory / remote-vault pairing. Local and
// Remote hold what each side looked like then, not what it looks like now;
// every diff is computed against this record.
type SyncState struct {
	SyncID    string               `json:"sync_id"`
	Local     map[string]FileState `json:"local"`
	Remote    map[string]FileState `json:"remote"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewSyncState creates an empty baseline for a session.
func NewSyncState(syncID string) *SyncState {
	return &SyncState{
		SyncID: syncID,
		Local:  make(map[string]FileState),
		Remote: make(map[string]FileState),
	}
}

// SetReconciled records that a path is identical on both sides as of now.
func (s *SyncState) SetReconciled(path string, local, remote FileState) {
	if s.Local == nil {
		s.Local = make(map[string]FileState)
	}
	if s.Remote == nil {
		s.Remote = make(map[string]FileState)
	}
	s.Local[path] = local
	s.Remote[path] = remote
}

// Forget drops a path from both sides of the baseline.
func (s *SyncState) Forget(path string) {
	delete(s.Local, path)
	delete(s.Remote, path)
}

// HasPath reports whether either side of the baseline knows the path.
func (s *SyncState) HasPath(path string) bool {
	if _, ok := s.Local[path]; ok {
		return true
	}
	_, ok := s.Remote[path]
	return ok
}

// LocalState returns the baseline local entry for a path.
func (s *SyncState) LocalState(path string) (FileState, bool) {
	fs, ok := s.Local[path]
	return fs, ok
}

// RemoteState returns the baseline remote entry for a path.
func (s *SyncState) RemoteState(path string) (FileState, bool) {
	fs, ok := s.Remote[path]
	return fs, ok
}

// FileCount returns the number of distinct paths in the baseline.
func (s *SyncState) FileCount() int {
	seen := make(map[string]struct{}, len(s.Local))
	for path := range s.Local {
		seen[path] = struct{}{}
	}
	for path := range s.Remote {
		seen[path] = struct{}{}
	}
	return len(seen)
}

// Validate validates the baseline structure.
func (s *SyncState) Validate() error {
	if strings.TrimSpace(s.SyncID) == "" {
		return fmt.Errorf("sync ID is required")
	}

	if s.Local == nil || s.Remote == nil {
		return fmt.Errorf("baseline maps cannot be nil")
	}

	for side, files := range map[string]map[string]FileState{"local": s.Local, "remote": s.Remote} {
		for path, fs := range files {
			if strings.TrimSpace(path) == "" {
				return fmt.Errorf("%s baseline contains an empty path", side)
			}
			if fs.Size < 0 {
				return fmt.Errorf("%s baseline entry %s has negative size", side, path)
			}
		}
	}

	return nil
}

// Clone creates a deep copy of the baseline.
func (s *SyncState) Clone() *SyncState {
	clone := &SyncState{
		SyncID:    s.SyncID,
		UpdatedAt: s.UpdatedAt,
		Local:     make(map[string]FileState, len(s.Local)),
		Remote:    make(map[string]FileState, len(s.Remote)),
	}

	for path, fs := range s.Local {
		clone.Local[path] = fs
	}
	for path, fs := range s.Remote {
		clone.Remote[path] = fs
	}

	return clone
}
