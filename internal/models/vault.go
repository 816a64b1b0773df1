package models

import (
	"fmt"
	"strings"
	"time"
)

// Vault represents a remote document store.
type Vault struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate validates the vault structure and data.
func (v *Vault) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("vault ID is required")
	}

	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("vault name is required")
	}

	if v.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp is required")
	}

	if !v.UpdatedAt.IsZero() && v.UpdatedAt.Before(v.CreatedAt) {
		return fmt.Errorf("updated_at cannot be before created_at")
	}

	return nil
}

// Document is one row of a vault listing. ContentHash is optional; list
// responses routinely omit it and callers must fall back to the modified
// time when comparing.
type Document struct {
	Path           string    `json:"path"`
	SizeBytes      int64     `json:"sizeBytes"`
	FileModifiedAt time.Time `json:"fileModifiedAt"`
	ContentHash    string    `json:"contentHash,omitempty"`
}

// FileState converts a listing row into the comparable form.
func (d Document) FileState() FileState {
	return FileState{
		Path:  NormalizePath(d.Path),
		Hash:  d.ContentHash,
		Size:  d.SizeBytes,
		MTime: d.FileModifiedAt.UTC(),
	}
}
