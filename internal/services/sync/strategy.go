package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/storage"
	"github.com/lsvault/lsvault/internal/transport"
)

// pullOps fetches vault documents and writes them into the local store.
type pullOps struct {
	api     transport.VaultAPI
	store   storage.Store
	vaultID string
	logger  *events.Logger
}

// NewPullOps builds the download strategy for one vault.
func NewPullOps(api transport.VaultAPI, store storage.Store, vaultID string, logger *events.Logger) TransferOps {
	return &pullOps{
		api:     api,
		store:   store,
		vaultID: vaultID,
		logger:  logger.WithField("direction", "pull"),
	}
}

func (p *pullOps) Transfer(ctx context.Context, entry models.SyncDiffEntry) (models.FileState, models.FileState, error) {
	var none models.FileState

	content, doc, err := p.api.GetDocument(ctx, p.vaultID, entry.Path)
	if err != nil {
		return none, none, fmt.Errorf("fetch %s: %w", entry.Path, err)
	}

	if err := p.store.Write(entry.Path, content); err != nil {
		return none, none, fmt.Errorf("write %s: %w", entry.Path, err)
	}

	// Mirror the remote modification time onto the local file so a
	// hash-less listing comparison still sees the sides as equal.
	modifiedAt := doc.FileModifiedAt
	if modifiedAt.IsZero() {
		modifiedAt = time.Now().UTC()
	}
	if err := p.store.SetModTime(entry.Path, modifiedAt); err != nil {
		p.logger.WithError(err).WithField("path", entry.Path).Warn("Failed to set modification time")
	}

	local := models.NewLocalFileState(entry.Path, content, modifiedAt)
	remote := models.NewRemoteFileState(entry.Path, content, modifiedAt)
	return local, remote, nil
}

func (p *pullOps) Delete(ctx context.Context, entry models.SyncDiffEntry) error {
	if err := p.store.Delete(entry.Path); err != nil {
		return fmt.Errorf("delete %s: %w", entry.Path, err)
	}
	return nil
}

// pushOps reads local documents and uploads them to the vault.
type pushOps struct {
	api     transport.VaultAPI
	store   storage.Store
	vaultID string
	logger  *events.Logger
}

// NewPushOps builds the upload strategy for one vault.
func NewPushOps(api transport.VaultAPI, store storage.Store, vaultID string, logger *events.Logger) TransferOps {
	return &pushOps{
		api:     api,
		store:   store,
		vaultID: vaultID,
		logger:  logger.WithField("direction", "push"),
	}
}

func (p *pushOps) Transfer(ctx context.Context, entry models.SyncDiffEntry) (models.FileState, models.FileState, error) {
	var none models.FileState

	content, err := p.store.Read(entry.Path)
	if err != nil {
		return none, none, fmt.Errorf("read %s: %w", entry.Path, err)
	}

	info, err := p.store.Stat(entry.Path)
	if err != nil {
		return none, none, fmt.Errorf("stat %s: %w", entry.Path, err)
	}

	doc, err := p.api.PutDocument(ctx, p.vaultID, entry.Path, content, info.ModTime)
	if err != nil {
		return none, none, fmt.Errorf("upload %s: %w", entry.Path, err)
	}

	// The server's recorded timestamp is authoritative for the remote
	// side of the baseline.
	modifiedAt := doc.FileModifiedAt
	if modifiedAt.IsZero() {
		modifiedAt = info.ModTime
	}

	local := models.NewLocalFileState(entry.Path, content, info.ModTime)
	remote := models.NewRemoteFileState(entry.Path, content, modifiedAt)
	return local, remote, nil
}

func (p *pushOps) Delete(ctx context.Context, entry models.SyncDiffEntry) error {
	if err := p.api.DeleteDocument(ctx, p.vaultID, entry.Path); err != nil {
		return fmt.Errorf("delete %s: %w", entry.Path, err)
	}
	return nil
}
