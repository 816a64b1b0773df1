package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SyncMode restricts which directions a session may transfer.
type SyncMode string

const (
	ModePullOnly SyncMode = "pull-only"
	ModePushOnly SyncMode = "push-only"
	ModeSync     SyncMode = "sync"
)

// ParseSyncMode accepts the canonical mode names plus short forms.
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pull", "pull-only":
		return ModePullOnly, nil
	case "push", "push-only":
		return ModePushOnly, nil
	case "sync", "both", "":
		return ModeSync, nil
	default:
		return "", fmt.Errorf("unknown sync mode: %q", s)
	}
}

// AllowsPull reports whether the mode permits downloads.
func (m SyncMode) AllowsPull() bool {
	return m == ModePullOnly || m == ModeSync
}

// AllowsPush reports whether the mode permits uploads.
func (m SyncMode) AllowsPush() bool {
	return m == ModePushOnly || m == ModeSync
}

// ConflictPolicy picks the surviving side when both changed since baseline.
type ConflictPolicy string

const (
	ConflictNewer  ConflictPolicy = "newer"
	ConflictLocal  ConflictPolicy = "local"
	ConflictRemote ConflictPolicy = "remote"
	ConflictManual ConflictPolicy = "manual"
)

// ParseConflictPolicy accepts the canonical policy names.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "newer", "":
		return ConflictNewer, nil
	case "local", "local-wins":
		return ConflictLocal, nil
	case "remote", "remote-wins":
		return ConflictRemote, nil
	case "manual":
		return ConflictManual, nil
	default:
		return "", fmt.Errorf("unknown conflict policy: %q", s)
	}
}

// SyncSession pairs one local directory with one remote vault. Sessions
// are owned by the configuration layer; the engine reads them and only
// asks for LastSyncAt to be advanced after a successful cycle.
type SyncSession struct {
	ID         string         `json:"id"`
	VaultID    string         `json:"vault_id"`
	LocalPath  string         `json:"local_path"`
	Mode       SyncMode       `json:"mode"`
	OnConflict ConflictPolicy `json:"on_conflict"`
	Ignore     []string       `json:"ignore,omitempty"`
	LastSyncAt time.Time      `json:"last_sync_at"`
	AutoSync   bool           `json:"auto_sync"`
}

// Validate validates the session structure.
func (s *SyncSession) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("session ID is required")
	}

	// The ID names state files on disk, so no separators or exotic runes.
	if !validSessionID(s.ID) {
		return fmt.Errorf("session ID may only contain letters, digits, '.', '-' and '_': %q", s.ID)
	}

	if strings.TrimSpace(s.VaultID) == "" {
		return fmt.Errorf("vault ID is required")
	}

	if strings.TrimSpace(s.LocalPath) == "" {
		return fmt.Errorf("local path is required")
	}

	if !filepath.IsAbs(s.LocalPath) {
		return fmt.Errorf("local path must be absolute: %s", s.LocalPath)
	}

	switch s.Mode {
	case ModePullOnly, ModePushOnly, ModeSync:
	default:
		return fmt.Errorf("invalid sync mode: %q", s.Mode)
	}

	switch s.OnConflict {
	case ConflictNewer, ConflictLocal, ConflictRemote, ConflictManual:
	default:
		return fmt.Errorf("invalid conflict policy: %q", s.OnConflict)
	}

	return nil
}

func validSessionID(id string) bool {
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
