package sync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/ignore"
	"github.com/lsvault/lsvault/internal/models"
)

// DefaultDebounce is the stability window for write coalescing. Editors
// commonly emit several writes while saving one file.
const DefaultDebounce = 500 * time.Millisecond

// ChangeOp classifies a watcher notification.
type ChangeOp int

const (
	// ChangeWrite covers create and modify, delivered after the
	// debounce window closes.
	ChangeWrite ChangeOp = iota
	// ChangeRemove covers delete and rename-away, delivered
	// immediately.
	ChangeRemove
)

// Change is one coalesced filesystem notification for a tracked
// document.
type Change struct {
	Path string
	Op   ChangeOp
}

// FileWatcher wraps the filesystem notification feed for one session
// root. Raw events are filtered through the ignore rules, write bursts
// are coalesced per path, and removals bypass the debounce entirely.
type FileWatcher struct {
	root     string
	matcher  *ignore.Matcher
	debounce time.Duration
	logger   *events.Logger

	fsw     *fsnotify.Watcher
	changes chan Change
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewFileWatcher attaches to root and every non-ignored directory under
// it. A non-positive debounce selects the default window.
func NewFileWatcher(root string, matcher *ignore.Matcher, debounce time.Duration, logger *events.Logger) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &FileWatcher{
		root:     root,
		matcher:  matcher,
		debounce: debounce,
		logger:   logger.WithField("component", "file_watcher"),
		fsw:      fsw,
		changes:  make(chan Change, 256),
		errs:     make(chan error, 16),
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

// Changes returns the coalesced change feed. The channel is never
// closed; consumers stop reading when they stop the watcher.
func (w *FileWatcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the feed of watcher-level errors.
func (w *FileWatcher) Errors() <-chan error {
	return w.errs
}

// PendingTimers reports how many paths sit inside their debounce
// window.
func (w *FileWatcher) PendingTimers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// Stop cancels every pending debounce timer and closes the underlying
// feed. Changes already delivered stay in the buffer; nothing is
// drained.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	close(w.done)
	if err := w.fsw.Close(); err != nil {
		w.logger.WithError(err).Warn("Failed to close filesystem watcher")
	}
	w.wg.Wait()

	w.logger.Debug("File watcher stopped")
}

// addRecursive watches dir and each non-ignored subdirectory.
func (w *FileWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch root %s: %w", dir, err)
			}
			w.logger.WithError(err).WithField("path", path).Warn("Skipping unreadable path")
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if path != w.root {
			rel, ok := w.relPath(path)
			if !ok {
				return fs.SkipDir
			}
			if w.matcher.Match(rel + "/") {
				return fs.SkipDir
			}
		}

		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *FileWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *FileWatcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.relPath(ev.Name)
	if !ok || rel == "" {
		return
	}

	// A directory created under the root joins the watch set so files
	// written inside it are seen.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.matcher.Match(rel + "/") {
				if err := w.addRecursive(ev.Name); err != nil {
					w.logger.WithError(err).WithField("path", rel).Warn("Failed to watch new directory")
				}
			}
			return
		}
	}

	if !models.IsDocumentPath(rel) || w.matcher.Match(rel) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancelTimer(rel)
		w.deliver(Change{Path: rel, Op: ChangeRemove})

	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.scheduleFlush(rel)
	}
}

// scheduleFlush starts or resets the per-path debounce timer. The
// change is delivered once the path has been quiet for the full
// window.
func (w *FileWatcher) scheduleFlush(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if timer, ok := w.timers[rel]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.timers[rel] = time.AfterFunc(w.debounce, func() {
		w.deliver(Change{Path: rel, Op: ChangeWrite})
		w.clearTimer(rel)
	})
}

func (w *FileWatcher) cancelTimer(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[rel]; ok {
		timer.Stop()
		delete(w.timers, rel)
	}
}

func (w *FileWatcher) clearTimer(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.timers, rel)
}

// deliver hands a change to the consumer without ever blocking event
// processing. A full buffer drops the change; the next scan picks the
// file up anyway.
func (w *FileWatcher) deliver(c Change) {
	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.changes <- c:
	default:
		w.logger.WithField("path", c.Path).Warn("Change buffer full, dropping event")
	}
}

func (w *FileWatcher) sendError(err error) {
	select {
	case w.errs <- err:
	default:
		w.logger.WithError(err).Warn("Error buffer full, dropping watcher error")
	}
}

func (w *FileWatcher) relPath(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return models.NormalizePath(rel), true
}
