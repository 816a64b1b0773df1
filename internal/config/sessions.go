package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lsvault/lsvault/internal/models"
)

// SessionStore persists sync sessions in a single JSON file. Each session
// pairs one local directory with one remote vault.
type SessionStore struct {
	path string
	mu   sync.Mutex
}

// NewSessionStore creates a store backed by the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// List returns all sessions sorted by ID.
func (s *SessionStore) List() ([]models.SyncSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return nil, err
	}

	list := make([]models.SyncSession, 0, len(sessions))
	for _, session := range sessions {
		list = append(list, session)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	return list, nil
}

// Get returns the session with the given ID.
func (s *SessionStore) Get(id string) (*models.SyncSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return nil, err
	}

	session, ok := sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}

	return &session, nil
}

// Add registers a new session. The session ID must be unused.
func (s *SessionStore) Add(session models.SyncSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := sessions[session.ID]; ok {
		return fmt.Errorf("session %s: %w", session.ID, models.ErrSessionExists)
	}

	sessions[session.ID] = session
	return s.save(sessions)
}

// Update replaces an existing session.
func (s *SessionStore) Update(session models.SyncSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := sessions[session.ID]; !ok {
		return fmt.Errorf("session %s: %w", session.ID, models.ErrSessionNotFound)
	}

	sessions[session.ID] = session
	return s.save(sessions)
}

// Remove deletes the session with the given ID.
func (s *SessionStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}

	delete(sessions, id)
	return s.save(sessions)
}

// UpdateLastSync stamps the session's last successful sync time to now.
func (s *SessionStore) UpdateLastSync(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}

	session, ok := sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}

	session.LastSyncAt = time.Now().UTC()
	sessions[id] = session
	return s.save(sessions)
}

// load reads the session file. A missing file yields an empty map.
func (s *SessionStore) load() (map[string]models.SyncSession, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]models.SyncSession), nil
		}
		return nil, fmt.Errorf("read sessions file: %w", err)
	}

	var sessions map[string]models.SyncSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parse sessions file %s: %w", s.path, err)
	}

	if sessions == nil {
		sessions = make(map[string]models.SyncSession)
	}

	return sessions, nil
}

// save writes the session file atomically via a temp file and rename.
func (s *SessionStore) save(sessions map[string]models.SyncSession) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	suffix := strings.Split(uuid.NewString(), "-")[0]
	tmpPath := fmt.Sprintf("%s.%s.tmp", s.path, suffix)

	if err := os.WriteFile(tmpPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write temp sessions file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename sessions file: %w", err)
	}

	return nil
}
