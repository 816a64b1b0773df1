package scan

import (
	"context"
	"fmt"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/ignore"
	"github.com/lsvault/lsvault/internal/models"
)

// DocumentLister is the slice of the vault API the remote scanner needs.
type DocumentLister interface {
	ListDocuments(ctx context.Context, vaultID string) ([]models.Document, error)
}

// RemoteScanner snapshots a vault through its document listing. Listing
// rows may omit content hashes; the snapshot carries them through empty
// and comparison logic falls back to modification times.
type RemoteScanner struct {
	api     DocumentLister
	vaultID string
	matcher *ignore.Matcher
	logger  *events.Logger
}

// NewRemoteScanner creates a scanner for one vault.
func NewRemoteScanner(api DocumentLister, vaultID string, matcher *ignore.Matcher, logger *events.Logger) *RemoteScanner {
	return &RemoteScanner{
		api:     api,
		vaultID: vaultID,
		matcher: matcher,
		logger:  logger.WithField("component", "remote_scanner"),
	}
}

// Scan fetches the vault listing and returns the current remote
// snapshot, filtered through the same ignore rules as the local side.
func (s *RemoteScanner) Scan(ctx context.Context) (map[string]models.FileState, error) {
	listing, err := s.api.ListDocuments(ctx, s.vaultID)
	if err != nil {
		return nil, fmt.Errorf("list vault %s: %w", s.vaultID, err)
	}

	snapshot := make(map[string]models.FileState, len(listing))
	for _, doc := range listing {
		state := doc.FileState()
		if state.Path == "" {
			continue
		}

		if !models.IsDocumentPath(state.Path) || s.matcher.Match(state.Path) {
			continue
		}

		snapshot[state.Path] = state
	}

	s.logger.WithFields(map[string]interface{}{
		"vault_id": s.vaultID,
		"listed":   len(listing),
		"files":    len(snapshot),
	}).Debug("Remote scan complete")

	return snapshot, nil
}
