// Package transport speaks the vault HTTP and WebSocket protocol.
package transport

import (
	"context"
	"time"

	"github.com/lsvault/lsvault/internal/models"
)

// VaultAPI is the remote document API the sync engine consumes. Calls
// are idempotent so a retried request that already succeeded is
// harmless.
type VaultAPI interface {
	// ListVaults returns the vaults visible to the authenticated user.
	ListVaults(ctx context.Context) ([]models.Vault, error)

	// ListDocuments returns the full document listing of a vault.
	// Listing rows may omit the content hash.
	ListDocuments(ctx context.Context, vaultID string) ([]models.Document, error)

	// GetDocument fetches one document's content and listing row.
	GetDocument(ctx context.Context, vaultID, path string) ([]byte, models.Document, error)

	// PutDocument uploads content, recording modifiedAt as the document's
	// file modification time, and returns the listing row the server
	// stored.
	PutDocument(ctx context.Context, vaultID, path string, content []byte, modifiedAt time.Time) (models.Document, error)

	// DeleteDocument removes a document. Deleting an absent document
	// succeeds.
	DeleteDocument(ctx context.Context, vaultID, path string) error
}
