// Package sync reconciles a session's local document root with its
// remote vault: one-shot pull/push/sync cycles plus the live watch
// service.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/lsvault/lsvault/internal/diff"
	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/ignore"
	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/scan"
	"github.com/lsvault/lsvault/internal/state"
	"github.com/lsvault/lsvault/internal/storage"
	"github.com/lsvault/lsvault/internal/transport"
)

// SessionStore is the slice of the configuration layer the engine
// needs: session lookup and the post-cycle last-sync advance.
type SessionStore interface {
	Get(id string) (*models.SyncSession, error)
	UpdateLastSync(id string) error
}

// StoreFactory opens the document store rooted at a session's local
// path.
type StoreFactory func(localPath string) (storage.Store, error)

// Options tunes one sync invocation.
type Options struct {
	Progress ProgressFunc
}

// Service provides session-level sync operations.
type Service struct {
	api      transport.VaultAPI
	states   state.Store
	sessions SessionStore
	stores   StoreFactory
	logger   *events.Logger
}

// NewService creates a sync service. A nil store factory opens a
// LocalStore at the session root.
func NewService(api transport.VaultAPI, states state.Store, sessions SessionStore, stores StoreFactory, logger *events.Logger) *Service {
	svc := &Service{
		api:      api,
		states:   states,
		sessions: sessions,
		stores:   stores,
		logger:   logger.WithField("service", "sync"),
	}

	if svc.stores == nil {
		svc.stores = func(localPath string) (storage.Store, error) {
			return storage.NewLocalStore(localPath, logger)
		}
	}

	return svc
}

// passKind selects the direction of one reconciliation pass.
type passKind int

const (
	passPull passKind = iota
	passPush
)

// Pull downloads remote changes into the session's local root.
func (s *Service) Pull(ctx context.Context, syncID string, opts Options) (*models.SyncResult, error) {
	session, err := s.sessions.Get(syncID)
	if err != nil {
		return nil, err
	}
	if !session.Mode.AllowsPull() {
		return nil, fmt.Errorf("session %s is %s: %w", syncID, session.Mode, models.ErrModeForbidden)
	}
	return s.run(ctx, session, opts, passPull)
}

// Push uploads local changes to the session's vault.
func (s *Service) Push(ctx context.Context, syncID string, opts Options) (*models.SyncResult, error) {
	session, err := s.sessions.Get(syncID)
	if err != nil {
		return nil, err
	}
	if !session.Mode.AllowsPush() {
		return nil, fmt.Errorf("session %s is %s: %w", syncID, session.Mode, models.ErrModeForbidden)
	}
	return s.run(ctx, session, opts, passPush)
}

// Sync runs the passes the session mode allows, pull before push, and
// merges the results.
func (s *Service) Sync(ctx context.Context, syncID string, opts Options) (*models.SyncResult, error) {
	session, err := s.sessions.Get(syncID)
	if err != nil {
		return nil, err
	}

	var passes []passKind
	if session.Mode.AllowsPull() {
		passes = append(passes, passPull)
	}
	if session.Mode.AllowsPush() {
		passes = append(passes, passPush)
	}

	return s.run(ctx, session, opts, passes...)
}

// run holds the session lock across every pass of one invocation.
func (s *Service) run(ctx context.Context, session *models.SyncSession, opts Options, passes ...passKind) (*models.SyncResult, error) {
	unlock, err := s.states.Lock(session.ID)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", session.ID, err)
	}
	defer unlock()

	return s.runLocked(ctx, session, opts, passes...)
}

// runLocked executes the passes for a caller already holding the
// session lock. Each pass rescans both sides because an earlier pass
// may have rewritten local files.
func (s *Service) runLocked(ctx context.Context, session *models.SyncSession, opts Options, passes ...passKind) (*models.SyncResult, error) {
	baseline, err := s.states.Load(session.ID)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	store, err := s.stores(session.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	matcher := ignore.NewMatcher(session.Ignore, session.LocalPath)
	localScanner := scan.NewLocalScanner(session.LocalPath, matcher, s.logger)
	remoteScanner := scan.NewRemoteScanner(s.api, session.VaultID, matcher, s.logger)
	engine := diff.NewEngine(s.logger)
	exec := NewExecutor(s.states, s.sessions, s.logger)

	total := &models.SyncResult{SyncID: session.ID, StartedAt: time.Now()}

	for _, pass := range passes {
		if opts.Progress != nil {
			opts.Progress(Progress{Phase: PhaseScanning})
		}

		local, err := localScanner.Scan(ctx)
		if err != nil {
			total.Duration = time.Since(total.StartedAt)
			return total, fmt.Errorf("scan local files: %w", err)
		}

		remote, err := remoteScanner.Scan(ctx)
		if err != nil {
			total.Duration = time.Since(total.StartedAt)
			return total, fmt.Errorf("scan vault %s: %w", session.VaultID, err)
		}

		var (
			plan *models.SyncDiff
			ops  TransferOps
		)
		if pass == passPull {
			plan = engine.ComputePullDiff(remote, local, baseline)
			ops = NewPullOps(s.api, store, session.VaultID, s.logger)
		} else {
			plan = engine.ComputePushDiff(local, remote, baseline)
			ops = NewPushOps(s.api, store, session.VaultID, s.logger)
		}

		result, err := exec.Execute(ctx, baseline, plan, ops, opts.Progress)
		if result != nil {
			total.Merge(result)
		}
		if err != nil {
			total.Duration = time.Since(total.StartedAt)
			return total, err
		}

		// A quota abort would recur in the next pass.
		if result.Aborted {
			break
		}
	}

	total.Duration = time.Since(total.StartedAt)
	return total, nil
}

// StatusReport is the dry-run view of a session: both direction plans
// computed against the current baseline without transferring anything.
type StatusReport struct {
	Session     models.SyncSession `json:"session"`
	Pull        *models.SyncDiff   `json:"pull"`
	Push        *models.SyncDiff   `json:"push"`
	LocalFiles  int                `json:"local_files"`
	RemoteFiles int                `json:"remote_files"`
	TrackedAt   time.Time          `json:"tracked_at"`
}

// InSync reports whether neither direction has pending work.
func (r *StatusReport) InSync() bool {
	return r.Pull.IsEmpty() && r.Push.IsEmpty()
}

// Status computes both direction plans without executing them.
func (s *Service) Status(ctx context.Context, syncID string) (*StatusReport, error) {
	session, err := s.sessions.Get(syncID)
	if err != nil {
		return nil, err
	}

	baseline, err := s.states.Load(session.ID)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	matcher := ignore.NewMatcher(session.Ignore, session.LocalPath)

	local, err := scan.NewLocalScanner(session.LocalPath, matcher, s.logger).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan local files: %w", err)
	}

	remote, err := scan.NewRemoteScanner(s.api, session.VaultID, matcher, s.logger).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan vault %s: %w", session.VaultID, err)
	}

	engine := diff.NewEngine(s.logger)

	return &StatusReport{
		Session:     *session,
		Pull:        engine.ComputePullDiff(remote, local, baseline),
		Push:        engine.ComputePushDiff(local, remote, baseline),
		LocalFiles:  len(local),
		RemoteFiles: len(remote),
		TrackedAt:   baseline.UpdatedAt,
	}, nil
}
