package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/ignore"
	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/scan"
	"github.com/lsvault/lsvault/internal/state"
	"github.com/lsvault/lsvault/internal/storage"
)

// WatchState is the observable phase of the watch service.
type WatchState string

const (
	WatchIdle         WatchState = "idle"
	WatchWatching     WatchState = "watching"
	WatchDebouncing   WatchState = "debouncing"
	WatchEvaluating   WatchState = "evaluating"
	WatchTransferring WatchState = "transferring"
	WatchStopped      WatchState = "stopped"
)

// RemoteFeed is a live stream of vault-side document changes. The
// transport events client implements it; tests substitute fakes.
type RemoteFeed interface {
	Connect(ctx context.Context) error
	Events() <-chan models.VaultEvent
	Errors() <-chan error
	Close() error
}

// WatchOptions tunes the watch service.
type WatchOptions struct {
	// Debounce overrides the write-coalescing window.
	Debounce time.Duration
	// Workers bounds concurrent per-path reconciliations.
	Workers int
	// Feed optionally streams remote changes; without it only local
	// filesystem events drive the service.
	Feed RemoteFeed
	// Progress observes the bootstrap sync.
	Progress ProgressFunc
}

// watchJob is one dispatched reconciliation unit.
type watchJob struct {
	path   string
	remove bool
	remote bool
	event  models.VaultEvent
}

// WatchService keeps one session continuously reconciled: a full sync
// runs first, then filesystem events (and optionally the vault's live
// feed) drive single-file cycles through the conflict gate. Event
// delivery and transfers are decoupled through a bounded worker pool;
// all baseline mutation is serialized.
type WatchService struct {
	svc      *Service
	syncID   string
	logger   *events.Logger
	debounce time.Duration
	workers  int
	feed     RemoteFeed
	progress ProgressFunc

	session  *models.SyncSession
	store    storage.Store
	matcher  *ignore.Matcher
	scanner  *scan.LocalScanner
	resolver *Resolver
	pull     TransferOps
	push     TransferOps

	// stateMu owns the baseline and the last-known remote view; every
	// read and write of either goes through it.
	stateMu     sync.Mutex
	baseline    *models.SyncState
	remoteKnown map[string]models.FileState

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	watcher *FileWatcher
	unlock  state.UnlockFunc

	wg   sync.WaitGroup
	jobs chan watchJob

	pending      atomic.Int32
	evaluating   atomic.Int32
	transferring atomic.Int32

	idleMu      sync.Mutex
	idleWaiters []chan struct{}
}

// NewWatchService creates a watch service for one session.
func NewWatchService(svc *Service, syncID string, opts WatchOptions) *WatchService {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	return &WatchService{
		svc:         svc,
		syncID:      syncID,
		logger:      svc.logger.WithField("component", "watch_service"),
		debounce:    opts.Debounce,
		workers:     workers,
		feed:        opts.Feed,
		progress:    opts.Progress,
		remoteKnown: make(map[string]models.FileState),
		jobs:        make(chan watchJob, 64),
	}
}

// Start reconciles the session fully, then attaches the filesystem
// watcher and, when available, the vault feed. It returns once
// watching; Stop ends it.
func (w *WatchService) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watch already started")
	}
	w.started = true
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	session, err := w.svc.sessions.Get(w.syncID)
	if err != nil {
		cancel()
		return err
	}
	w.session = session

	// The lock spans the whole watch: one writer per session.
	unlock, err := w.svc.states.Lock(session.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("lock session %s: %w", session.ID, err)
	}
	w.mu.Lock()
	w.unlock = unlock
	w.mu.Unlock()

	fail := func(err error) error {
		cancel()
		w.mu.Lock()
		if w.unlock != nil {
			w.unlock()
			w.unlock = nil
		}
		w.mu.Unlock()
		return err
	}

	// Reconcile fully before attaching the feed so watching starts
	// from a clean baseline.
	var passes []passKind
	if session.Mode.AllowsPull() {
		passes = append(passes, passPull)
	}
	if session.Mode.AllowsPush() {
		passes = append(passes, passPush)
	}

	w.logger.WithField("sync_id", session.ID).Info("Running bootstrap sync")
	if _, err := w.svc.runLocked(ctx, session, Options{Progress: w.progress}, passes...); err != nil {
		return fail(fmt.Errorf("bootstrap sync: %w", err))
	}

	baseline, err := w.svc.states.Load(session.ID)
	if err != nil {
		return fail(fmt.Errorf("load sync state: %w", err))
	}
	w.baseline = baseline

	store, err := w.svc.stores(session.LocalPath)
	if err != nil {
		return fail(fmt.Errorf("open local store: %w", err))
	}
	w.store = store

	w.matcher = ignore.NewMatcher(session.Ignore, session.LocalPath)
	w.scanner = scan.NewLocalScanner(session.LocalPath, w.matcher, w.logger)
	w.resolver = NewResolver(session.OnConflict, w.logger)
	w.pull = NewPullOps(w.svc.api, store, session.VaultID, w.logger)
	w.push = NewPushOps(w.svc.api, store, session.VaultID, w.logger)

	// Seed the remote view; the feed keeps it current from here on.
	remote, err := scan.NewRemoteScanner(w.svc.api, session.VaultID, w.matcher, w.logger).Scan(ctx)
	if err != nil {
		return fail(fmt.Errorf("seed remote view: %w", err))
	}
	w.remoteKnown = remote

	watcher, err := NewFileWatcher(session.LocalPath, w.matcher, w.debounce, w.logger)
	if err != nil {
		return fail(err)
	}
	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	var (
		feedEvents <-chan models.VaultEvent
		feedErrs   <-chan error
	)
	if w.feed != nil {
		if err := w.feed.Connect(ctx); err != nil {
			w.logger.WithError(err).Warn("Vault feed unavailable, watching filesystem only")
			w.feed = nil
		} else {
			feedEvents = w.feed.Events()
			feedErrs = w.feed.Errors()
		}
	}

	w.wg.Add(1)
	go w.dispatch(ctx, watcher, feedEvents, feedErrs)

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}

	w.logger.WithFields(map[string]interface{}{
		"sync_id": session.ID,
		"path":    session.LocalPath,
	}).Info("Watching for changes")

	return nil
}

// Stop closes the event feeds, cancels pending work, and waits for the
// workers. Already-dispatched transfers finish or fail on their own;
// nothing is drained.
func (w *WatchService) Stop() {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel := w.cancel
	watcher := w.watcher
	w.mu.Unlock()

	w.logger.Info("Stopping watch")

	if watcher != nil {
		watcher.Stop()
	}
	if w.feed != nil {
		if err := w.feed.Close(); err != nil {
			w.logger.WithError(err).Debug("Feed close failed")
		}
	}

	cancel()
	w.wg.Wait()

	w.mu.Lock()
	if w.unlock != nil {
		w.unlock()
		w.unlock = nil
	}
	w.mu.Unlock()

	w.releaseIdleWaiters()
	w.logger.Info("Watch stopped")
}

// State reports the service's current phase.
func (w *WatchService) State() WatchState {
	w.mu.Lock()
	started, stopped, watcher := w.started, w.stopped, w.watcher
	w.mu.Unlock()

	switch {
	case stopped:
		return WatchStopped
	case !started:
		return WatchIdle
	case w.transferring.Load() > 0:
		return WatchTransferring
	case w.evaluating.Load() > 0:
		return WatchEvaluating
	case watcher != nil && watcher.PendingTimers() > 0:
		return WatchDebouncing
	default:
		return WatchWatching
	}
}

// Idle returns a channel that closes once no dispatched or debouncing
// work remains. Stopping the service releases every waiter.
func (w *WatchService) Idle() <-chan struct{} {
	ch := make(chan struct{})

	w.idleMu.Lock()
	if w.idleNow() {
		close(ch)
	} else {
		w.idleWaiters = append(w.idleWaiters, ch)
	}
	w.idleMu.Unlock()

	return ch
}

func (w *WatchService) idleNow() bool {
	if w.pending.Load() > 0 {
		return false
	}

	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()

	if watcher == nil {
		return true
	}
	return watcher.PendingTimers() == 0 && len(watcher.Changes()) == 0
}

func (w *WatchService) notifyIdle() {
	w.idleMu.Lock()
	defer w.idleMu.Unlock()

	if !w.idleNow() {
		return
	}
	for _, ch := range w.idleWaiters {
		close(ch)
	}
	w.idleWaiters = nil
}

func (w *WatchService) releaseIdleWaiters() {
	w.idleMu.Lock()
	defer w.idleMu.Unlock()

	for _, ch := range w.idleWaiters {
		close(ch)
	}
	w.idleWaiters = nil
}

// dispatch fans events into the job queue. It never transfers inline;
// blocking here would stall event delivery.
func (w *WatchService) dispatch(ctx context.Context, watcher *FileWatcher, feedEvents <-chan models.VaultEvent, feedErrs <-chan error) {
	defer w.wg.Done()
	defer close(w.jobs)

	for {
		select {
		case <-ctx.Done():
			return

		case change := <-watcher.Changes():
			w.enqueue(ctx, watchJob{path: change.Path, remove: change.Op == ChangeRemove})

		case err := <-watcher.Errors():
			w.logger.WithError(err).Warn("Filesystem watcher error")

		case ev, ok := <-feedEvents:
			if !ok {
				w.logger.Warn("Vault feed closed")
				feedEvents = nil
				continue
			}
			w.enqueue(ctx, watchJob{path: ev.Path(), remote: true, event: ev})

		case err, ok := <-feedErrs:
			if !ok {
				feedErrs = nil
				continue
			}
			w.logger.WithError(err).Warn("Vault feed error")
		}
	}
}

func (w *WatchService) enqueue(ctx context.Context, job watchJob) {
	w.pending.Add(1)
	select {
	case w.jobs <- job:
	case <-ctx.Done():
		w.finishJob()
	}
}

func (w *WatchService) worker(ctx context.Context) {
	defer w.wg.Done()

	for job := range w.jobs {
		w.handle(ctx, job)
		w.finishJob()
	}
}

func (w *WatchService) finishJob() {
	w.pending.Add(-1)
	w.notifyIdle()
}

func (w *WatchService) handle(ctx context.Context, job watchJob) {
	w.evaluating.Add(1)
	defer w.evaluating.Add(-1)

	switch {
	case job.remote:
		w.handleRemote(ctx, job.event)
	case job.remove:
		w.handleLocalRemove(ctx, job.path)
	default:
		w.handleLocalWrite(ctx, job.path)
	}
}

// handleLocalWrite reconciles one locally changed path: ignore echoes,
// gate through the conflict resolver, then push.
func (w *WatchService) handleLocalWrite(ctx context.Context, path string) {
	if !w.session.Mode.AllowsPush() {
		return
	}

	current, exists, err := w.scanner.ScanFile(path)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("Failed to read changed file")
		return
	}
	if !exists {
		// Gone between the event and the scan.
		w.handleLocalRemove(ctx, path)
		return
	}

	w.stateMu.Lock()
	baseLocal, blOK := w.baseline.LocalState(path)
	baseRemote, brOK := w.baseline.RemoteState(path)
	remoteCur, remoteOK := w.remoteKnown[path]
	w.stateMu.Unlock()

	if !sideChanged(current, true, baseLocal, blOK) {
		// Echo of a write this service performed itself.
		return
	}

	if sideChanged(remoteCur, remoteOK, baseRemote, brOK) {
		w.resolveConflict(ctx, path, current, remoteCur, remoteOK)
		return
	}

	action := models.ActionCreate
	reason := "created locally"
	if remoteOK || brOK {
		action = models.ActionUpdate
		reason = "modified locally"
	}
	w.pushFile(ctx, path, current.Size, action, reason)
}

// handleLocalRemove propagates a local deletion to the vault unless the
// remote side moved on since the baseline.
func (w *WatchService) handleLocalRemove(ctx context.Context, path string) {
	if !w.session.Mode.AllowsPush() {
		return
	}

	w.stateMu.Lock()
	baseRemote, brOK := w.baseline.RemoteState(path)
	remoteCur, remoteOK := w.remoteKnown[path]
	tracked := w.baseline.HasPath(path)
	w.stateMu.Unlock()

	if !tracked && !remoteOK {
		// Never synced; nothing to remove remotely.
		return
	}

	if sideChanged(remoteCur, remoteOK, baseRemote, brOK) {
		// The remote edit outweighs the local delete; forgetting the
		// baseline lets the next pull restore the file.
		w.logger.WithField("path", path).Warn("Skipping delete of remotely changed file")
		w.commit(func() { w.baseline.Forget(path) })
		return
	}

	w.transferring.Add(1)
	defer w.transferring.Add(-1)

	entry := models.SyncDiffEntry{
		Path:      path,
		Action:    models.ActionDelete,
		Direction: models.DirectionUpload,
		Reason:    "deleted locally",
	}
	if err := w.push.Delete(ctx, entry); err != nil {
		w.logger.WithError(err).WithField("path", path).Error("Remote delete failed")
		return
	}

	w.commit(func() {
		w.baseline.Forget(path)
		delete(w.remoteKnown, path)
	})

	w.logger.WithField("path", path).Info("Propagated local delete")
}

// handleRemote applies one live feed message.
func (w *WatchService) handleRemote(ctx context.Context, ev models.VaultEvent) {
	path := ev.Path()
	if path == "" || !models.IsDocumentPath(path) || w.matcher.Match(path) {
		return
	}

	switch ev.Type {
	case models.VaultEventDocUpdated:
		w.handleRemoteUpdate(ctx, path, ev.Document.FileState())
	case models.VaultEventDocDeleted:
		w.handleRemoteDelete(ctx, path)
	default:
		w.logger.WithField("type", string(ev.Type)).Debug("Ignoring feed event")
	}
}

func (w *WatchService) handleRemoteUpdate(ctx context.Context, path string, remote models.FileState) {
	w.stateMu.Lock()
	w.remoteKnown[path] = remote
	baseRemote, brOK := w.baseline.RemoteState(path)
	baseLocal, blOK := w.baseline.LocalState(path)
	w.stateMu.Unlock()

	if !sideChanged(remote, true, baseRemote, brOK) {
		// Echo of a push this service performed itself.
		return
	}

	local, exists, err := w.scanner.ScanFile(path)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("Failed to read local side")
		return
	}

	if !exists {
		if blOK {
			// Deleted locally, edited remotely. The edit wins; a
			// deletion is recoverable, lost content is not.
			w.logger.WithField("path", path).Warn("Remote edit restores locally deleted file")
		}
		w.pullFile(ctx, path, remote.Size, "created remotely")
		return
	}

	if !sideChanged(local, true, baseLocal, blOK) {
		w.pullFile(ctx, path, remote.Size, "modified remotely")
		return
	}

	w.resolveConflict(ctx, path, local, remote, true)
}

func (w *WatchService) handleRemoteDelete(ctx context.Context, path string) {
	w.stateMu.Lock()
	delete(w.remoteKnown, path)
	baseLocal, blOK := w.baseline.LocalState(path)
	w.stateMu.Unlock()

	if !w.session.Mode.AllowsPull() {
		return
	}

	local, exists, err := w.scanner.ScanFile(path)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("Failed to read local side")
		return
	}
	if !exists {
		w.commit(func() { w.baseline.Forget(path) })
		return
	}

	if sideChanged(local, true, baseLocal, blOK) {
		// Remote deleted a file that changed locally; the local edit
		// survives and the next push recreates the document.
		w.logger.WithField("path", path).Warn("Keeping locally modified file despite remote delete")
		w.commit(func() { w.baseline.Forget(path) })
		return
	}

	if err := w.store.Delete(path); err != nil {
		w.logger.WithError(err).WithField("path", path).Error("Failed to delete local file")
		return
	}

	w.commit(func() { w.baseline.Forget(path) })
	w.logger.WithField("path", path).Info("Applied remote delete")
}

// resolveConflict routes a both-sides-changed path through the session
// policy.
func (w *WatchService) resolveConflict(ctx context.Context, path string, local models.FileState, remote models.FileState, remoteOK bool) {
	if !remoteOK {
		// Remote deleted while local changed; keep the local version
		// and push it back up.
		w.logger.WithField("path", path).Warn("Conflict: remote side deleted, keeping local file")
		w.commit(func() { w.baseline.Forget(path) })
		w.pushFile(ctx, path, local.Size, models.ActionUpdate, "recreated after remote delete")
		return
	}

	switch w.resolver.Decide(local, remote) {
	case KeepLocal:
		w.pushFile(ctx, path, local.Size, models.ActionUpdate, "conflict resolved for local")
	case KeepRemote:
		w.pullFile(ctx, path, remote.Size, "conflict resolved for remote")
	default:
		w.writeConflictCopy(ctx, path)
	}
}

// writeConflictCopy preserves both sides: the remote content lands in a
// conflict-named sibling and neither original moves. The baseline stays
// untouched, so the conflict resurfaces until someone merges by hand.
func (w *WatchService) writeConflictCopy(ctx context.Context, path string) {
	content, _, err := w.svc.api.GetDocument(ctx, w.session.VaultID, path)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Error("Failed to fetch remote side of conflict")
		return
	}

	copyPath, err := w.store.WriteConflictCopy(path, content)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Error("Failed to write conflict copy")
		return
	}

	w.logger.WithFields(map[string]interface{}{
		"path": path,
		"copy": copyPath,
	}).Warn("Conflict: both sides changed, remote version saved beside the original")
}

func (w *WatchService) pushFile(ctx context.Context, path string, size int64, action models.DiffAction, reason string) {
	if !w.session.Mode.AllowsPush() {
		w.logger.WithField("path", path).Warn("Push needed but session mode forbids uploads")
		return
	}

	w.transferring.Add(1)
	defer w.transferring.Add(-1)

	entry := models.SyncDiffEntry{
		Path:      path,
		Action:    action,
		Direction: models.DirectionUpload,
		SizeBytes: size,
		Reason:    reason,
	}
	local, remote, err := w.push.Transfer(ctx, entry)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Error("Push failed")
		return
	}

	w.commit(func() {
		w.baseline.SetReconciled(path, local, remote)
		w.remoteKnown[path] = remote
	})

	w.logger.WithFields(map[string]interface{}{
		"path":   path,
		"reason": reason,
	}).Info("Pushed local change")
}

func (w *WatchService) pullFile(ctx context.Context, path string, size int64, reason string) {
	if !w.session.Mode.AllowsPull() {
		w.logger.WithField("path", path).Warn("Download needed but session mode forbids it")
		return
	}

	w.transferring.Add(1)
	defer w.transferring.Add(-1)

	entry := models.SyncDiffEntry{
		Path:      path,
		Action:    models.ActionUpdate,
		Direction: models.DirectionDownload,
		SizeBytes: size,
		Reason:    reason,
	}
	local, remote, err := w.pull.Transfer(ctx, entry)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Error("Download failed")
		return
	}

	w.commit(func() {
		w.baseline.SetReconciled(path, local, remote)
		w.remoteKnown[path] = remote
	})

	w.logger.WithFields(map[string]interface{}{
		"path":   path,
		"reason": reason,
	}).Info("Applied remote change")
}

// commit funnels every baseline mutation through one owner and
// persists the result, so near-simultaneous path completions cannot
// lose updates.
func (w *WatchService) commit(mutate func()) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	mutate()

	if err := w.svc.states.Save(w.baseline); err != nil {
		w.logger.WithError(err).Error("Failed to persist sync state")
		return
	}
	if err := w.svc.sessions.UpdateLastSync(w.session.ID); err != nil {
		w.logger.WithError(err).Warn("Failed to advance last-sync marker")
	}
}
