package state

import (
	"sync"

	"github.com/lsvault/lsvault/internal/models"
)

// MockStore provides an in-memory implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	states map[string]*models.SyncState

	// SaveCalls counts Save invocations for asserting persistence behavior.
	SaveCalls int
}

// NewMockStore creates a mock state store.
func NewMockStore() *MockStore {
	return &MockStore{
		states: make(map[string]*models.SyncState),
	}
}

// Load returns a copy of the stored baseline, or a fresh empty one.
func (m *MockStore) Load(syncID string) (*models.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if st, ok := m.states[syncID]; ok {
		return st.Clone(), nil
	}

	return models.NewSyncState(syncID), nil
}

// Save stores a copy of the baseline.
func (m *MockStore) Save(state *models.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls++
	m.states[state.SyncID] = state.Clone()
	return nil
}

// Delete removes the stored baseline.
func (m *MockStore) Delete(syncID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.states[syncID]
	delete(m.states, syncID)
	return existed, nil
}

// List returns all sync IDs with stored state.
func (m *MockStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var syncIDs []string
	for syncID := range m.states {
		syncIDs = append(syncIDs, syncID)
	}
	return syncIDs, nil
}

// Lock acquires a no-op lock.
func (m *MockStore) Lock(syncID string) (UnlockFunc, error) {
	return func() {}, nil
}

// Migrate copies all states to another store.
func (m *MockStore) Migrate(target Store) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, st := range m.states {
		if err := target.Save(st.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Helper methods for testing

// SaveState stores state directly without counting the call.
func (m *MockStore) SaveState(state *models.SyncState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.SyncID] = state.Clone()
}

// Clear removes all states.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*models.SyncState)
	m.SaveCalls = 0
}
