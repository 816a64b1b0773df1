// Package diff computes three-way change sets between a source
// snapshot, a destination snapshot, and the last reconciliation
// baseline.
package diff

import (
	"sort"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// Engine plans reconciliation work. It is a pure computation; the same
// inputs always produce the same plan and nothing is persisted.
type Engine struct {
	logger *events.Logger
}

// NewEngine creates a diff engine.
func NewEngine(logger *events.Logger) *Engine {
	return &Engine{logger: logger.WithField("component", "diff_engine")}
}

// ComputePullDiff plans remote-to-local reconciliation. The remote side
// is the source of truth: remote deletions propagate to local files,
// but a local-only file is never touched.
func (e *Engine) ComputePullDiff(remote, local map[string]models.FileState, baseline *models.SyncState) *models.SyncDiff {
	d := e.compute(remote, local, baseline.Remote, baseline.Local, models.DirectionDownload)
	e.logPlan("pull", d)
	return d
}

// ComputePushDiff plans local-to-remote reconciliation with the roles
// inverted: local deletions propagate to the vault.
func (e *Engine) ComputePushDiff(local, remote map[string]models.FileState, baseline *models.SyncState) *models.SyncDiff {
	d := e.compute(local, remote, baseline.Local, baseline.Remote, models.DirectionUpload)
	e.logPlan("push", d)
	return d
}

// compute classifies every path in the union of the two snapshots and
// the baseline. The destination is only written where the source moved
// relative to the baseline; destination-side divergence alone produces
// no entry here, it is the conflict resolver's concern.
func (e *Engine) compute(source, dest, baseSource, baseDest map[string]models.FileState, direction models.Direction) *models.SyncDiff {
	d := &models.SyncDiff{}

	for _, path := range unionPaths(source, dest, baseSource, baseDest) {
		srcState, inSource := source[path]
		dstState, inDest := dest[path]
		baseSrc, inBaseSource := baseSource[path]
		_, inBaseDest := baseDest[path]
		inBaseline := inBaseSource || inBaseDest

		switch {
		case inSource && !inDest:
			if inBaseline {
				// The old incarnation was reconciled away at some
				// point, so this is a delete plus a create collapsed
				// into one entry.
				d.Add(models.SyncDiffEntry{
					Path:      path,
					Action:    models.ActionUpdate,
					Direction: direction,
					SizeBytes: srcState.Size,
					Reason:    "recreated after deletion",
				})
			} else {
				d.Add(models.SyncDiffEntry{
					Path:      path,
					Action:    models.ActionCreate,
					Direction: direction,
					SizeBytes: srcState.Size,
					Reason:    "new on source",
				})
			}

		case inSource && inDest:
			if inBaseSource {
				if !srcState.SameContent(baseSrc) {
					d.Add(models.SyncDiffEntry{
						Path:      path,
						Action:    models.ActionUpdate,
						Direction: direction,
						SizeBytes: srcState.Size,
						Reason:    "changed since last sync",
					})
				}
			} else if !srcState.SameContent(dstState) {
				d.Add(models.SyncDiffEntry{
					Path:      path,
					Action:    models.ActionUpdate,
					Direction: direction,
					SizeBytes: srcState.Size,
					Reason:    "differs with no baseline",
				})
			}

		case !inSource && inDest:
			if inBaseline {
				d.Add(models.SyncDiffEntry{
					Path:      path,
					Action:    models.ActionDelete,
					Direction: direction,
					SizeBytes: dstState.Size,
					Reason:    "deleted on source",
				})
			}
		}
	}

	return d
}

func (e *Engine) logPlan(kind string, d *models.SyncDiff) {
	e.logger.WithFields(map[string]interface{}{
		"kind":        kind,
		"uploads":     len(d.Uploads),
		"downloads":   len(d.Downloads),
		"deletes":     len(d.Deletes),
		"total_bytes": d.TotalBytes,
	}).Debug("Computed diff")
}

// unionPaths returns every path any input knows, sorted so plans are
// deterministic.
func unionPaths(maps ...map[string]models.FileState) []string {
	seen := make(map[string]struct{})
	for _, m := range maps {
		for path := range m {
			seen[path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
