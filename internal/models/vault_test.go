package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/models"
)

func TestVaultValidate(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		vault   models.Vault
		wantErr string
	}{
		{
			name:  "valid",
			vault: models.Vault{ID: "v1", Name: "Notes", CreatedAt: created, UpdatedAt: created.Add(time.Hour)},
		},
		{
			name:    "missing ID",
			vault:   models.Vault{Name: "Notes", CreatedAt: created},
			wantErr: "vault ID is required",
		},
		{
			name:    "missing name",
			vault:   models.Vault{ID: "v1", CreatedAt: created},
			wantErr: "vault name is required",
		},
		{
			name:    "updated before created",
			vault:   models.Vault{ID: "v1", Name: "Notes", CreatedAt: created, UpdatedAt: created.Add(-time.Hour)},
			wantErr: "updated_at cannot be before created_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vault.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDocumentFileState(t *testing.T) {
	modified := time.Date(2024, 7, 1, 9, 30, 0, 0, time.FixedZone("PST", -8*3600))

	doc := models.Document{
		Path:           "/notes/daily.md",
		SizeBytes:      128,
		FileModifiedAt: modified,
		ContentHash:    "abc123",
	}

	fs := doc.FileState()

	assert.Equal(t, "notes/daily.md", fs.Path)
	assert.Equal(t, "abc123", fs.Hash)
	assert.Equal(t, int64(128), fs.Size)
	assert.Equal(t, time.UTC, fs.MTime.Location())
	assert.True(t, fs.MTime.Equal(modified))
}

func TestDocumentFileStateWithoutHash(t *testing.T) {
	doc := models.Document{Path: "notes/a.md", SizeBytes: 10, FileModifiedAt: time.Now()}

	fs := doc.FileState()

	assert.False(t, fs.HasHash(), "listing rows may omit the hash")
}

func TestVaultEventPath(t *testing.T) {
	event := models.VaultEvent{
		Type:     models.VaultEventDocDeleted,
		VaultID:  "v1",
		Document: models.Document{Path: "/notes/gone.md"},
	}

	assert.Equal(t, "notes/gone.md", event.Path())
}
