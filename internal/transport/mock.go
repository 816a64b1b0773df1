package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lsvault/lsvault/internal/models"
)

type mockDocument struct {
	content []byte
	doc     models.Document
}

// MockVault provides an in-memory VaultAPI for testing, with per-path
// error injection and request tracking.
type MockVault struct {
	mu sync.Mutex

	Vaults []models.Vault
	docs   map[string]map[string]mockDocument

	// When set, listings drop content hashes so callers exercise the
	// modification-time fallback.
	OmitListingHashes bool

	// Error injection
	ListVaultsErr error
	ListErr       error
	GetErrs       map[string]error
	PutErrs       map[string]error
	DeleteErrs    map[string]error

	// Request tracking
	ListCalls int
	Gets      []string
	Puts      []string
	Deletes   []string
}

// NewMockVault creates an empty mock API.
func NewMockVault() *MockVault {
	return &MockVault{
		docs:       make(map[string]map[string]mockDocument),
		GetErrs:    make(map[string]error),
		PutErrs:    make(map[string]error),
		DeleteErrs: make(map[string]error),
	}
}

// ListVaults returns the configured vaults.
func (m *MockVault) ListVaults(ctx context.Context) ([]models.Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListVaultsErr != nil {
		return nil, m.ListVaultsErr
	}

	vaults := make([]models.Vault, len(m.Vaults))
	copy(vaults, m.Vaults)
	return vaults, nil
}

// ListDocuments returns the vault's listing sorted by path.
func (m *MockVault) ListDocuments(ctx context.Context, vaultID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var listing []models.Document
	for _, entry := range m.docs[vaultID] {
		doc := entry.doc
		if m.OmitListingHashes {
			doc.ContentHash = ""
		}
		listing = append(listing, doc)
	}

	sort.Slice(listing, func(i, j int) bool {
		return listing[i].Path < listing[j].Path
	})

	return listing, nil
}

// GetDocument returns a seeded document.
func (m *MockVault) GetDocument(ctx context.Context, vaultID, path string) ([]byte, models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Gets = append(m.Gets, path)

	if err := m.GetErrs[path]; err != nil {
		return nil, models.Document{}, err
	}

	entry, ok := m.docs[vaultID][path]
	if !ok {
		return nil, models.Document{}, fmt.Errorf("document not found: %s", path)
	}

	content := make([]byte, len(entry.content))
	copy(content, entry.content)
	return content, entry.doc, nil
}

// PutDocument stores content and returns the recorded listing row.
func (m *MockVault) PutDocument(ctx context.Context, vaultID, path string, content []byte, modifiedAt time.Time) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Puts = append(m.Puts, path)

	if err := m.PutErrs[path]; err != nil {
		return models.Document{}, err
	}

	doc := models.Document{
		Path:           path,
		SizeBytes:      int64(len(content)),
		FileModifiedAt: modifiedAt.UTC(),
		ContentHash:    models.HashContent(content),
	}

	stored := make([]byte, len(content))
	copy(stored, content)

	if m.docs[vaultID] == nil {
		m.docs[vaultID] = make(map[string]mockDocument)
	}
	m.docs[vaultID][path] = mockDocument{content: stored, doc: doc}

	return doc, nil
}

// DeleteDocument removes a document; deleting an absent path succeeds.
func (m *MockVault) DeleteDocument(ctx context.Context, vaultID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Deletes = append(m.Deletes, path)

	if err := m.DeleteErrs[path]; err != nil {
		return err
	}

	delete(m.docs[vaultID], path)
	return nil
}

// Helper methods for test setup

// SeedDocument places a document in a vault without tracking the call.
func (m *MockVault) SeedDocument(vaultID, path string, content []byte, modifiedAt time.Time) models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := models.Document{
		Path:           path,
		SizeBytes:      int64(len(content)),
		FileModifiedAt: modifiedAt.UTC(),
		ContentHash:    models.HashContent(content),
	}

	stored := make([]byte, len(content))
	copy(stored, content)

	if m.docs[vaultID] == nil {
		m.docs[vaultID] = make(map[string]mockDocument)
	}
	m.docs[vaultID][path] = mockDocument{content: stored, doc: doc}

	return doc
}

// Content returns a stored document body, or nil when absent.
func (m *MockVault) Content(vaultID, path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.docs[vaultID][path]
	if !ok {
		return nil
	}

	content := make([]byte, len(entry.content))
	copy(content, entry.content)
	return content
}

// HasDocument reports whether a vault holds a path.
func (m *MockVault) HasDocument(vaultID, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.docs[vaultID][path]
	return ok
}

// DocumentCount returns the number of documents in a vault.
func (m *MockVault) DocumentCount(vaultID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.docs[vaultID])
}
