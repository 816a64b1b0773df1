package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// stateFile wraps the baseline with storage metadata. The checksum is
// computed over the record with the checksum field left empty.
type stateFile struct {
	*models.SyncState

	SchemaVersion int       `json:"schema_version"`
	SavedAt       time.Time `json:"saved_at"`
	Checksum      string    `json:"checksum,omitempty"`
}

func (f *stateFile) computeChecksum() (string, error) {
	clean := stateFile{
		SyncState:     f.SyncState,
		SchemaVersion: f.SchemaVersion,
		SavedAt:       f.SavedAt,
	}

	data, err := json.Marshal(clean)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// JSONStore keeps one JSON file per session under a base directory.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	mu sync.RWMutex
}

// NewJSONStore creates a JSON-based state store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_state_store"),
	}, nil
}

// Load reads the baseline from its JSON file. A missing file, a file
// that fails to parse, or a checksum mismatch yields a fresh empty
// baseline after trying the backup copy.
func (s *JSONStore) Load(syncID string) (*models.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.statePath(syncID)
	log := s.logger.WithFields(map[string]interface{}{
		"sync_id": syncID,
		"path":    path,
	})

	log.Debug("Loading state")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewSyncState(syncID), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	st, err := decodeStateFile(data)
	if err != nil {
		log.WithError(err).Warn("State file unreadable, trying backup")
		return s.loadBackup(syncID, log), nil
	}

	return normalizeState(st, syncID), nil
}

// Save writes the baseline atomically, keeping the previous file as a
// backup for corruption recovery.
func (s *JSONStore) Save(state *models.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = time.Now().UTC()

	path := s.statePath(state.SyncID)

	s.logger.WithFields(map[string]interface{}{
		"sync_id": state.SyncID,
		"files":   state.FileCount(),
	}).Debug("Saving state")

	if err := os.MkdirAll(s.baseDir, 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	wrapper := stateFile{
		SyncState:     state,
		SchemaVersion: CurrentSchemaVersion,
		SavedAt:       state.UpdatedAt,
	}

	checksum, err := wrapper.computeChecksum()
	if err != nil {
		return fmt.Errorf("checksum state: %w", err)
	}
	wrapper.Checksum = checksum

	jsonData, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Keep the previous good copy around before overwriting
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".backup"); err != nil {
			s.logger.WithError(err).Warn("Failed to create state backup")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0600); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Delete removes persisted state for a session.
func (s *JSONStore) Delete(syncID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("sync_id", syncID).Info("Deleting state")

	path := s.statePath(syncID)

	_, statErr := os.Stat(path)
	existed := statErr == nil

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return existed, fmt.Errorf("remove state file: %w", err)
	}
	_ = os.Remove(path + ".backup")

	return existed, nil
}

// List returns all sync IDs with persisted state.
func (s *JSONStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var syncIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".json" {
			syncIDs = append(syncIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return syncIDs, nil
}

// Lock acquires an exclusive cross-process lock for a session.
func (s *JSONStore) Lock(syncID string) (UnlockFunc, error) {
	if err := os.MkdirAll(s.baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	fl := flock.New(filepath.Join(s.baseDir, syncID+".lock"))

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrStateLocked
		}
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return nil, ErrStateLocked
	}

	return func() { _ = fl.Unlock() }, nil
}

// Migrate copies all states to another store.
func (s *JSONStore) Migrate(target Store) error {
	return migrateStates(s, target, s.logger)
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Helper methods

func (s *JSONStore) statePath(syncID string) string {
	return filepath.Join(s.baseDir, syncID+".json")
}

// loadBackup loads the backup copy, falling back to a fresh baseline.
func (s *JSONStore) loadBackup(syncID string, log *events.Logger) *models.SyncState {
	data, err := os.ReadFile(s.statePath(syncID) + ".backup")
	if err == nil {
		if st, decodeErr := decodeStateFile(data); decodeErr == nil {
			log.Warn("Recovered state from backup")
			return normalizeState(st, syncID)
		}
	}

	log.Warn("State unrecoverable, starting from empty baseline")
	return models.NewSyncState(syncID)
}

// decodeStateFile parses and checksum-verifies one state record.
func decodeStateFile(data []byte) (*models.SyncState, error) {
	var wrapper stateFile
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	if wrapper.SyncState == nil {
		return nil, ErrStateCorrupt
	}

	if wrapper.Checksum != "" {
		expected, err := wrapper.computeChecksum()
		if err != nil {
			return nil, err
		}
		if expected != wrapper.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrStateCorrupt)
		}
	}

	return wrapper.SyncState, nil
}

// normalizeState guards against null maps in hand-edited files.
func normalizeState(st *models.SyncState, syncID string) *models.SyncState {
	if st.SyncID == "" {
		st.SyncID = syncID
	}
	if st.Local == nil {
		st.Local = make(map[string]models.FileState)
	}
	if st.Remote == nil {
		st.Remote = make(map[string]models.FileState)
	}
	return st
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
