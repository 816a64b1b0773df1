package sync

import (
	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// Resolution is the outcome of a conflict decision.
type Resolution int

const (
	// KeepLocal pushes the local version over the remote one.
	KeepLocal Resolution = iota
	// KeepRemote downloads the remote version over the local one.
	KeepRemote
	// WriteCopy preserves both versions: the remote content lands in a
	// conflict-named sibling file and neither original is overwritten.
	WriteCopy
)

func (r Resolution) String() string {
	switch r {
	case KeepLocal:
		return "keep-local"
	case KeepRemote:
		return "keep-remote"
	default:
		return "write-copy"
	}
}

// Resolver decides the fate of a path edited on both sides between
// reconciliations. Only watch mode consults it; one-shot runs treat the
// source side as authoritative.
type Resolver struct {
	policy models.ConflictPolicy
	logger *events.Logger
}

// NewResolver creates a resolver for the session's policy.
func NewResolver(policy models.ConflictPolicy, logger *events.Logger) *Resolver {
	return &Resolver{
		policy: policy,
		logger: logger.WithField("component", "conflict_resolver"),
	}
}

// Detect reports whether a path diverged on both sides since the
// baseline. Presence flags distinguish a missing file from a zero
// FileState.
func (r *Resolver) Detect(path string, local models.FileState, localOK bool, remote models.FileState, remoteOK bool, baseline *models.SyncState) bool {
	baseLocal, blOK := baseline.LocalState(path)
	baseRemote, brOK := baseline.RemoteState(path)
	return sideChanged(local, localOK, baseLocal, blOK) && sideChanged(remote, remoteOK, baseRemote, brOK)
}

// Decide picks the surviving side. Under the newer policy an equal
// modification time cannot name a winner, so it falls through to the
// manual conflict-copy path rather than guessing.
func (r *Resolver) Decide(local, remote models.FileState) Resolution {
	var resolution Resolution

	switch r.policy {
	case models.ConflictLocal:
		resolution = KeepLocal
	case models.ConflictRemote:
		resolution = KeepRemote
	case models.ConflictNewer:
		switch {
		case local.MTime.After(remote.MTime):
			resolution = KeepLocal
		case remote.MTime.After(local.MTime):
			resolution = KeepRemote
		default:
			resolution = WriteCopy
		}
	default:
		resolution = WriteCopy
	}

	r.logger.WithFields(map[string]interface{}{
		"path":       local.Path,
		"policy":     string(r.policy),
		"resolution": resolution.String(),
	}).Info("Resolved conflict")

	return resolution
}

// sideChanged reports whether one side's current state diverged from its
// baseline entry.
func sideChanged(current models.FileState, currentOK bool, base models.FileState, baseOK bool) bool {
	switch {
	case !currentOK && !baseOK:
		return false
	case currentOK != baseOK:
		return true
	default:
		return !current.SameContent(base)
	}
}
