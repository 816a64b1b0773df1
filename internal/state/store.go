// Package state persists the reconciliation baseline for each sync session.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// Store manages sync baseline persistence. Load never fails on a missing
// or unreadable record; it hands back a fresh empty baseline so a damaged
// state file means re-reconciling, not a dead session.
type Store interface {
	// Load retrieves the baseline for a session, or a fresh empty one.
	Load(syncID string) (*models.SyncState, error)

	// Save stamps UpdatedAt and persists the full baseline.
	Save(state *models.SyncState) error

	// Delete removes persisted state, reporting whether any existed.
	Delete(syncID string) (bool, error)

	// List returns all sync IDs with persisted state.
	List() ([]string, error)

	// Lock acquires an exclusive lock for a session.
	Lock(syncID string) (UnlockFunc, error)

	// Migrate copies every state into another store.
	Migrate(target Store) error

	// Close releases resources.
	Close() error
}

// UnlockFunc releases a session lock.
type UnlockFunc func()

// Errors
var (
	ErrStateLocked  = errors.New("sync state is locked by another process")
	ErrStateCorrupt = errors.New("sync state record is corrupt")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// lockTimeout bounds how long Lock waits for a busy session.
const lockTimeout = 5 * time.Second

// migrateStates copies every baseline from src into dst. Unloadable
// states are logged and skipped; save failures abort the migration.
func migrateStates(src, dst Store, logger *events.Logger) error {
	syncIDs, err := src.List()
	if err != nil {
		return fmt.Errorf("list states: %w", err)
	}

	logger.WithField("count", len(syncIDs)).Info("Migrating sync states")

	for _, syncID := range syncIDs {
		st, err := src.Load(syncID)
		if err != nil {
			logger.WithError(err).WithField("sync_id", syncID).Error("Failed to load state")
			continue
		}

		if err := dst.Save(st); err != nil {
			return fmt.Errorf("save state %s: %w", syncID, err)
		}

		logger.WithField("sync_id", syncID).Debug("Migrated state")
	}

	return nil
}
