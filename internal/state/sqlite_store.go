package state

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// SQLiteStore implements SQLite-based state storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger

	// Locking
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewSQLiteStore creates a SQLite state store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_state_store"),
		locks:  make(map[string]chan struct{}),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sync_states (
        sync_id TEXT PRIMARY KEY,
        updated_at TIMESTAMP,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS sync_files (
        sync_id TEXT NOT NULL,
        side TEXT NOT NULL CHECK (side IN ('local', 'remote')),
        path TEXT NOT NULL,
        hash TEXT NOT NULL,
        size INTEGER NOT NULL,
        mtime TIMESTAMP NOT NULL,
        PRIMARY KEY (sync_id, side, path),
        FOREIGN KEY (sync_id) REFERENCES sync_states(sync_id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_sync_files_sync ON sync_files(sync_id);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Load retrieves the baseline from the database, or a fresh empty one
// when the session has never been saved.
func (s *SQLiteStore) Load(syncID string) (*models.SyncState, error) {
	s.logger.WithField("sync_id", syncID).Debug("Loading state from SQLite")

	st := models.NewSyncState(syncID)

	var updatedAt sql.NullTime
	err := s.db.QueryRow(`
        SELECT updated_at
        FROM sync_states
        WHERE sync_id = ?
    `, syncID).Scan(&updatedAt)

	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}

	if updatedAt.Valid {
		st.UpdatedAt = updatedAt.Time
	}

	rows, err := s.db.Query(`
        SELECT side, path, hash, size, mtime
        FROM sync_files
        WHERE sync_id = ?
    `, syncID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			side, path, hash string
			size             int64
			mtime            time.Time
		)
		if err := rows.Scan(&side, &path, &hash, &size, &mtime); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}

		fileState := models.FileState{
			Path:  path,
			Hash:  hash,
			Size:  size,
			MTime: mtime,
		}

		if side == "local" {
			st.Local[path] = fileState
		} else {
			st.Remote[path] = fileState
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	return st, nil
}

// Save persists the baseline in a single transaction.
func (s *SQLiteStore) Save(state *models.SyncState) error {
	state.UpdatedAt = time.Now().UTC()

	s.logger.WithFields(map[string]interface{}{
		"sync_id": state.SyncID,
		"files":   state.FileCount(),
	}).Debug("Saving state to SQLite")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
        INSERT INTO sync_states (sync_id, updated_at)
        VALUES (?, ?)
        ON CONFLICT(sync_id) DO UPDATE SET
            updated_at = excluded.updated_at
    `, state.SyncID, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM sync_files WHERE sync_id = ?", state.SyncID); err != nil {
		return fmt.Errorf("delete old files: %w", err)
	}

	stmt, err := tx.Prepare(`
        INSERT INTO sync_files (sync_id, side, path, hash, size, mtime)
        VALUES (?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, side := range []struct {
		name  string
		files map[string]models.FileState
	}{
		{"local", state.Local},
		{"remote", state.Remote},
	} {
		for path, fileState := range side.files {
			if _, err := stmt.Exec(state.SyncID, side.name, path, fileState.Hash, fileState.Size, fileState.MTime); err != nil {
				return fmt.Errorf("insert %s file %s: %w", side.name, path, err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes persisted state for a session.
func (s *SQLiteStore) Delete(syncID string) (bool, error) {
	s.logger.WithField("sync_id", syncID).Info("Deleting state from SQLite")

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM sync_files WHERE sync_id = ?", syncID); err != nil {
		return false, fmt.Errorf("delete files: %w", err)
	}

	res, err := tx.Exec("DELETE FROM sync_states WHERE sync_id = ?", syncID)
	if err != nil {
		return false, fmt.Errorf("delete state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected > 0, tx.Commit()
}

// List returns all sync IDs with persisted state.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query("SELECT sync_id FROM sync_states ORDER BY sync_id")
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	var syncIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sync ID: %w", err)
		}
		syncIDs = append(syncIDs, id)
	}

	return syncIDs, rows.Err()
}

// Lock acquires an in-process lock for a session. Cross-process
// serialization comes from SQLite's own busy handling.
func (s *SQLiteStore) Lock(syncID string) (UnlockFunc, error) {
	s.mu.Lock()
	sem, ok := s.locks[syncID]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[syncID] = sem
	}
	s.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-time.After(lockTimeout):
		return nil, ErrStateLocked
	}
}

// Migrate copies all states to another store.
func (s *SQLiteStore) Migrate(target Store) error {
	return migrateStates(s, target, s.logger)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
