package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher collects changes before
// emitting them.
const DefaultDebounce = 250 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Root is the project directory to watch recursively.
	Root string

	ExcludeDirs      []string
	ExcludePatterns  []string
	RespectGitignore bool

	// DebounceDelay is how long to wait for more changes before emitting.
	DebounceDelay time.Duration

	Logger *slog.Logger
}

// WatchOp is the kind of change reported for a file.
type WatchOp string

const (
	OpChange WatchOp = "change"
	OpRemove WatchOp = "remove"
)

// WatchEvent reports a changed or removed source file.
type WatchEvent struct {
	// Path is relative to the watched root, slash-separated.
	Path string
	Op   WatchOp
}

// Watcher reports debounced changes to C source files under a root.
type Watcher struct {
	root     string
	debounce time.Duration
	excl     *excluder
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // rel path -> most recent operation

	events chan WatchEvent
}

// NewWatcher creates a watcher. Call Start to begin receiving events.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	root, err := checkRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	excl, err := newExcluder(root, cfg.ExcludeDirs, cfg.ExcludePatterns, cfg.RespectGitignore)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.DebounceDelay
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		root:     root,
		debounce: debounce,
		excl:     excl,
		watcher:  fsw,
		logger:   logger,
		pending:  make(map[string]fsnotify.Op),
		events:   make(chan WatchEvent, 100),
	}, nil
}

// Events returns the channel of watch events. It is closed once the
// watcher stops.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start adds watches for every non-excluded directory and begins
// processing events until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)

	w.logger.Info("file watcher started",
		"root", w.root,
		"debounce", w.debounce)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) addWatchesRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel := w.rel(p); rel != "." && w.excl.skipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) rel(p string) string {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.flushPending(ctx)
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	rel := w.rel(event.Name)

	if !isSource(event.Name) {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.excl.skipDir(rel) {
				if err := w.addWatchesRecursive(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory", "path", rel, "error", err)
				}
			}
		}
		return
	}
	if w.excl.skipFile(rel) {
		return
	}

	w.pendingMu.Lock()
	w.pending[rel] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("file change detected", "path", rel, "op", event.Op.String())
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	paths := make([]string, 0, len(toProcess))
	for p := range toProcess {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		event := WatchEvent{Path: rel, Op: OpChange}
		if _, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(rel))); errors.Is(err, fs.ErrNotExist) {
			event.Op = OpRemove
		}
		select {
		case w.events <- event:
		case <-ctx.Done():
			return
		}
	}
}
