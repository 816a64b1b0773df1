package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/state"
)

// MockVaultAPI mocks transport.VaultAPI with expectation-based calls.
type MockVaultAPI struct {
	mock.Mock
}

func NewMockVaultAPI() *MockVaultAPI {
	return &MockVaultAPI{}
}

func (m *MockVaultAPI) ListVaults(ctx context.Context) ([]models.Vault, error) {
	args := m.Called(ctx)
	if vaults := args.Get(0); vaults != nil {
		return vaults.([]models.Vault), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVaultAPI) ListDocuments(ctx context.Context, vaultID string) ([]models.Document, error) {
	args := m.Called(ctx, vaultID)
	if docs := args.Get(0); docs != nil {
		return docs.([]models.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVaultAPI) GetDocument(ctx context.Context, vaultID, path string) ([]byte, models.Document, error) {
	args := m.Called(ctx, vaultID, path)
	var content []byte
	if data := args.Get(0); data != nil {
		content = data.([]byte)
	}
	return content, args.Get(1).(models.Document), args.Error(2)
}

func (m *MockVaultAPI) PutDocument(ctx context.Context, vaultID, path string, content []byte, modifiedAt time.Time) (models.Document, error) {
	args := m.Called(ctx, vaultID, path, content, modifiedAt)
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockVaultAPI) DeleteDocument(ctx context.Context, vaultID, path string) error {
	args := m.Called(ctx, vaultID, path)
	return args.Error(0)
}

// MockStateStore mocks state.Store.
type MockStateStore struct {
	mock.Mock
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{}
}

func (m *MockStateStore) Load(syncID string) (*models.SyncState, error) {
	args := m.Called(syncID)
	if st := args.Get(0); st != nil {
		return st.(*models.SyncState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateStore) Save(st *models.SyncState) error {
	args := m.Called(st)
	return args.Error(0)
}

func (m *MockStateStore) Delete(syncID string) (bool, error) {
	args := m.Called(syncID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStateStore) List() ([]string, error) {
	args := m.Called()
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateStore) Lock(syncID string) (state.UnlockFunc, error) {
	args := m.Called(syncID)
	if unlock := args.Get(0); unlock != nil {
		return unlock.(state.UnlockFunc), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateStore) Migrate(target state.Store) error {
	args := m.Called(target)
	return args.Error(0)
}

func (m *MockStateStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSessionStore mocks the sync service's session lookup.
type MockSessionStore struct {
	mock.Mock
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{}
}

func (m *MockSessionStore) Get(id string) (*models.SyncSession, error) {
	args := m.Called(id)
	if session := args.Get(0); session != nil {
		return session.(*models.SyncSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionStore) UpdateLastSync(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// AssertMockExpectations verifies all mock expectations.
func AssertMockExpectations(t mock.TestingT, mocks ...interface{}) {
	for _, m := range mocks {
		if mockObj, ok := m.(interface{ AssertExpectations(mock.TestingT) bool }); ok {
			mockObj.AssertExpectations(t)
		}
	}
}
