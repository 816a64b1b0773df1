package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/state"
)

// Progress phases reported to the observer callback.
const (
	PhaseScanning     = "scanning"
	PhaseTransferring = "transferring"
	PhaseDeleting     = "deleting"
	PhaseDone         = "done"
)

// Progress is one observer notification. Bytes is the running total of
// transferred content at the time of the notification.
type Progress struct {
	Phase string
	Index int
	Total int
	Path  string
	Bytes int64
}

// ProgressFunc observes executor steps. It is a plain callback; it
// cannot fail the operation.
type ProgressFunc func(Progress)

// TransferOps is the direction strategy the executor runs under. Pull
// fetches from the vault and writes locally; push reads locally and
// uploads. Transfer returns the reconciled state of both sides so the
// baseline can record the path as in sync.
type TransferOps interface {
	Transfer(ctx context.Context, entry models.SyncDiffEntry) (local, remote models.FileState, err error)
	Delete(ctx context.Context, entry models.SyncDiffEntry) error
}

// SessionUpdater advances a session's last-sync marker.
type SessionUpdater interface {
	UpdateLastSync(id string) error
}

// Executor applies a computed diff through a TransferOps strategy. Both
// directions share this one batch loop, so state updates, error
// accounting, and quota aborts behave identically for pull and push.
type Executor struct {
	states   state.Store
	sessions SessionUpdater
	logger   *events.Logger
}

// NewExecutor creates an executor.
func NewExecutor(states state.Store, sessions SessionUpdater, logger *events.Logger) *Executor {
	return &Executor{
		states:   states,
		sessions: sessions,
		logger:   logger.WithField("component", "sync_executor"),
	}
}

// Execute walks the diff in plan order: transfers first, then deletes.
// Each successful path updates both baseline sides immediately, so a
// partial batch still leaves every finished path reconciled. A quota
// error aborts the remaining entries; other failures are recorded and
// the batch continues. The updated baseline is persisted and the
// session's last-sync marker advanced exactly once, whatever happened
// mid-batch.
func (e *Executor) Execute(ctx context.Context, baseline *models.SyncState, d *models.SyncDiff, ops TransferOps, progress ProgressFunc) (*models.SyncResult, error) {
	result := &models.SyncResult{
		SyncID:    baseline.SyncID,
		StartedAt: time.Now(),
	}

	transfers := d.Transfers()
	total := len(transfers) + len(d.Deletes)
	step := 0

	report := func(phase, path string) {
		if progress != nil {
			progress(Progress{
				Phase: phase,
				Index: step,
				Total: total,
				Path:  path,
				Bytes: result.BytesTransferred,
			})
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"sync_id":   baseline.SyncID,
		"transfers": len(transfers),
		"deletes":   len(d.Deletes),
	}).Info("Executing sync plan")

	stopped := false

	for _, entry := range transfers {
		if err := ctx.Err(); err != nil {
			result.RecordError(entry.Path, err)
			stopped = true
			break
		}

		step++
		report(PhaseTransferring, entry.Path)

		local, remote, err := ops.Transfer(ctx, entry)
		if err != nil {
			result.RecordError(entry.Path, err)
			e.logger.WithError(err).WithField("path", entry.Path).Error("Transfer failed")

			if models.IsQuotaError(err) {
				e.logger.WithField("remaining", len(transfers)-step).Warn("Quota exhausted, aborting batch")
				result.Aborted = true
				stopped = true
				break
			}
			continue
		}

		baseline.SetReconciled(entry.Path, local, remote)
		if entry.Direction == models.DirectionUpload {
			result.FilesUploaded++
		} else {
			result.FilesDownloaded++
		}
		result.BytesTransferred += local.Size
	}

	if !stopped {
		for _, entry := range d.Deletes {
			if err := ctx.Err(); err != nil {
				result.RecordError(entry.Path, err)
				break
			}

			step++
			report(PhaseDeleting, entry.Path)

			if err := ops.Delete(ctx, entry); err != nil {
				result.RecordError(entry.Path, err)
				e.logger.WithError(err).WithField("path", entry.Path).Error("Delete failed")

				if models.IsQuotaError(err) {
					result.Aborted = true
					break
				}
				continue
			}

			baseline.Forget(entry.Path)
			result.FilesDeleted++
		}
	}

	report(PhaseDone, "")
	result.Duration = time.Since(result.StartedAt)

	// Partial progress must survive; persist whatever advanced.
	if err := e.states.Save(baseline); err != nil {
		return result, fmt.Errorf("save sync state: %w", err)
	}

	if err := e.sessions.UpdateLastSync(baseline.SyncID); err != nil {
		e.logger.WithError(err).WithField("sync_id", baseline.SyncID).Warn("Failed to advance last-sync marker")
	}

	e.logger.WithFields(map[string]interface{}{
		"sync_id":    baseline.SyncID,
		"uploaded":   result.FilesUploaded,
		"downloaded": result.FilesDownloaded,
		"deleted":    result.FilesDeleted,
		"bytes":      result.BytesTransferred,
		"errors":     len(result.Errors),
		"duration":   result.Duration,
	}).Info("Sync plan executed")

	return result, nil
}
