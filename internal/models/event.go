package models

import "time"

// VaultEventType identifies a live feed message.
type VaultEventType string

const (
	VaultEventDocUpdated VaultEventType = "doc.updated"
	VaultEventDocDeleted VaultEventType = "doc.deleted"
)

// VaultEvent is one message from a vault's change feed. For doc.updated
// the Document carries the post-change listing row; for doc.deleted only
// the path is meaningful.
type VaultEvent struct {
	Type       VaultEventType `json:"type"`
	VaultID    string         `json:"vaultId"`
	Document   Document       `json:"document"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Path returns the affected document path.
func (e VaultEvent) Path() string {
	return NormalizePath(e.Document.Path)
}
