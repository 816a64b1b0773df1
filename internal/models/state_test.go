package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/models"
)

func TestNewSyncState(t *testing.T) {
	state := models.NewSyncState("session-1")

	assert.Equal(t, "session-1", state.SyncID)
	assert.NotNil(t, state.Local)
	assert.NotNil(t, state.Remote)
	assert.Empty(t, state.Local)
	assert.Empty(t, state.Remote)
	assert.True(t, state.UpdatedAt.IsZero())
}

func TestSyncStateSetReconciled(t *testing.T) {
	state := models.NewSyncState("session-1")
	local := models.FileState{Path: "a.md", Hash: "h1", Size: 10}
	remote := models.FileState{Path: "a.md", Hash: "h1", Size: 10}

	state.SetReconciled("a.md", local, remote)

	got, ok := state.LocalState("a.md")
	require.True(t, ok)
	assert.Equal(t, local, got)

	got, ok = state.RemoteState("a.md")
	require.True(t, ok)
	assert.Equal(t, remote, got)

	assert.True(t, state.HasPath("a.md"))
	assert.False(t, state.HasPath("b.md"))
}

func TestSyncStateSetReconciledNilMaps(t *testing.T) {
	// A state decoded from a sparse document may carry nil maps.
	state := &models.SyncState{SyncID: "session-1"}

	state.SetReconciled("a.md", models.FileState{Path: "a.md"}, models.FileState{Path: "a.md"})

	assert.True(t, state.HasPath("a.md"))
}

func TestSyncStateForget(t *testing.T) {
	state := models.NewSyncState("session-1")
	state.SetReconciled("a.md", models.FileState{Path: "a.md"}, models.FileState{Path: "a.md"})

	state.Forget("a.md")

	assert.False(t, state.HasPath("a.md"))
	assert.Equal(t, 0, state.FileCount())
}

func TestSyncStateFileCount(t *testing.T) {
	state := models.NewSyncState("session-1")
	state.SetReconciled("a.md", models.FileState{Path: "a.md"}, models.FileState{Path: "a.md"})
	state.Local["local-only.md"] = models.FileState{Path: "local-only.md"}
	state.Remote["remote-only.md"] = models.FileState{Path: "remote-only.md"}

	// Paths are counted once even when present on both sides.
	assert.Equal(t, 3, state.FileCount())
}

func TestSyncStateValidate(t *testing.T) {
	tests := []struct {
		name    string
		state   *models.SyncState
		wantErr string
	}{
		{
			name:  "valid",
			state: models.NewSyncState("session-1"),
		},
		{
			name:    "missing sync ID",
			state:   models.NewSyncState(""),
			wantErr: "sync ID is required",
		},
		{
			name:    "nil maps",
			state:   &models.SyncState{SyncID: "session-1"},
			wantErr: "baseline maps cannot be nil",
		},
		{
			name: "empty path",
			state: &models.SyncState{
				SyncID: "session-1",
				Local:  map[string]models.FileState{"": {}},
				Remote: map[string]models.FileState{},
			},
			wantErr: "empty path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSyncStateClone(t *testing.T) {
	state := models.NewSyncState("session-1")
	state.UpdatedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	state.SetReconciled("a.md",
		models.FileState{Path: "a.md", Hash: "h1"},
		models.FileState{Path: "a.md", Hash: "h1"})

	clone := state.Clone()

	assert.Equal(t, state.SyncID, clone.SyncID)
	assert.Equal(t, state.UpdatedAt, clone.UpdatedAt)
	assert.Equal(t, state.Local, clone.Local)
	assert.Equal(t, state.Remote, clone.Remote)

	// Mutating the clone must not touch the original.
	clone.SetReconciled("b.md", models.FileState{Path: "b.md"}, models.FileState{Path: "b.md"})
	assert.False(t, state.HasPath("b.md"))
}
