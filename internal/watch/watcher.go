package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoWatchRoots is returned by New when neither root exists.
var ErrNoWatchRoots = errors.New("no watch directories found")

const (
	// DefaultDepth is how many directory levels below a root are watched.
	DefaultDepth = 4
	// DefaultStabilityThreshold is how long a file must stay unchanged
	// before its event is emitted.
	DefaultStabilityThreshold = 300 * time.Millisecond
	// DefaultPollInterval is how often pending files are checked.
	DefaultPollInterval = 100 * time.Millisecond
)

// pendingWrite tracks a file whose latest write has not settled yet.
type pendingWrite struct {
	kind        Kind
	seq         uint64
	size        int64
	modTime     time.Time
	stableSince time.Time
}

// Watcher turns raw fsnotify events under the teams and tasks roots into
// debounced ChangeEvents. All bookkeeping is owned by the goroutine
// running Run.
type Watcher struct {
	teamsDir  string
	tasksDir  string
	roots     []string
	depth     int
	stability time.Duration
	poll      time.Duration
	now       func() time.Time

	fsw     *fsnotify.Watcher
	dirs    map[string]int // watched dir → levels below its root
	gone    map[string]bool
	pending map[string]*pendingWrite
	seq     uint64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDepth overrides how many levels below each root are watched.
func WithDepth(depth int) Option {
	return func(w *Watcher) { w.depth = depth }
}

// WithStabilityThreshold overrides the quiescence window.
func WithStabilityThreshold(d time.Duration) Option {
	return func(w *Watcher) { w.stability = d }
}

// WithPollInterval overrides how often pending files are polled.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.poll = d }
}

// New starts watching whichever of teamsDir and tasksDir exist. Files
// already present are not reported.
func New(teamsDir, tasksDir string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		teamsDir:  cleanRoot(teamsDir),
		tasksDir:  cleanRoot(tasksDir),
		depth:     DefaultDepth,
		stability: DefaultStabilityThreshold,
		poll:      DefaultPollInterval,
		now:       time.Now,
		dirs:      make(map[string]int),
		gone:      make(map[string]bool),
		pending:   make(map[string]*pendingWrite),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.clampSettings()

	for _, root := range []string{w.teamsDir, w.tasksDir} {
		if root == "" {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			slog.Debug("watch root unavailable", "dir", root, "error", err)
			continue
		}
		w.roots = append(w.roots, root)
	}
	if len(w.roots) == 0 {
		return nil, ErrNoWatchRoots
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	for _, root := range w.roots {
		w.addTree(root, 0, false)
	}
	return w, nil
}

// clampSettings replaces non-positive tuning values with the defaults.
func (w *Watcher) clampSettings() {
	if w.depth <= 0 {
		slog.Warn("invalid watch depth, using default", "depth", w.depth, "default", DefaultDepth)
		w.depth = DefaultDepth
	}
	if w.stability <= 0 {
		slog.Warn("invalid stability threshold, using default", "threshold", w.stability, "default", DefaultStabilityThreshold)
		w.stability = DefaultStabilityThreshold
	}
	if w.poll <= 0 {
		slog.Warn("invalid poll interval, using default", "interval", w.poll, "default", DefaultPollInterval)
		w.poll = DefaultPollInterval
	}
}

// Roots returns the directories actually being watched.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// Close stops the underlying notifier. Run returns once its channels close.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes notifications until ctx is cancelled or the watcher is
// closed, calling emit for every settled change.
func (w *Watcher) Run(ctx context.Context, emit func(ChangeEvent)) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped: context cancelled")
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev, emit)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		case <-ticker.C:
			w.flush(emit)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, emit func(ChangeEvent)) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.removed(ev.Name, emit)

	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			parent, ok := w.dirs[filepath.Dir(ev.Name)]
			if ok {
				w.addTree(ev.Name, parent+1, true)
			}
			return
		}
		w.schedule(ev.Name, KindAdd)

	case ev.Has(fsnotify.Write):
		if _, isDir := w.dirs[ev.Name]; isDir {
			return
		}
		w.schedule(ev.Name, KindChange)
	}
}

// addTree watches dir and its subdirectories down to the configured depth.
// With report set, files found along the way are scheduled as adds: they
// appeared after the watcher attached.
func (w *Watcher) addTree(dir string, depth int, report bool) {
	if depth > w.depth {
		return
	}
	if _, ok := w.dirs[dir]; ok {
		return
	}
	delete(w.gone, dir)
	if err := w.fsw.Add(dir); err != nil {
		slog.Warn("watch add failed", "dir", dir, "error", err)
		return
	}
	w.dirs[dir] = depth

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Debug("watch dir read error", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			w.addTree(full, depth+1, report)
			continue
		}
		if report {
			w.schedule(full, KindAdd)
		}
	}
}

// schedule records a raw write. A write to a path that is already pending
// restarts its quiescence window and keeps the first kind.
func (w *Watcher) schedule(path string, kind Kind) {
	// A regular file now lives where a removed directory was.
	delete(w.gone, path)

	now := w.now()
	if p, ok := w.pending[path]; ok {
		p.stableSince = now
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.seq++
	w.pending[path] = &pendingWrite{
		kind:        kind,
		seq:         w.seq,
		size:        info.Size(),
		modTime:     info.ModTime(),
		stableSince: now,
	}
}

// flush emits every pending file whose size and mtime held still for the
// stability threshold, oldest first.
func (w *Watcher) flush(emit func(ChangeEvent)) {
	if len(w.pending) == 0 {
		return
	}

	now := w.now()
	var ready []string
	for path, p := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			// The remove notification settles it.
			continue
		}
		if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
			p.size = info.Size()
			p.modTime = info.ModTime()
			p.stableSince = now
			continue
		}
		if now.Sub(p.stableSince) >= w.stability {
			ready = append(ready, path)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		return w.pending[ready[i]].seq < w.pending[ready[j]].seq
	})
	for _, path := range ready {
		kind := w.pending[path].kind
		delete(w.pending, path)
		w.emit(emit, path, kind)
	}
}

func (w *Watcher) removed(path string, emit func(ChangeEvent)) {
	if _, ok := w.dirs[path]; ok {
		w.forgetDir(path)
		return
	}
	// A removed directory is reported by both itself and its parent.
	if w.gone[path] {
		delete(w.gone, path)
		return
	}

	p, wasPending := w.pending[path]
	delete(w.pending, path)
	if wasPending && p.kind == KindAdd {
		// Created and removed before it settled: observers never saw it.
		return
	}
	w.emit(emit, path, KindRemove)
}

// forgetDir drops a removed directory and everything below it.
func (w *Watcher) forgetDir(dir string) {
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			_ = w.fsw.Remove(d)
			delete(w.dirs, d)
			w.gone[d] = true
		}
	}
	for path := range w.pending {
		if strings.HasPrefix(path, prefix) {
			delete(w.pending, path)
		}
	}
	for _, root := range w.roots {
		if root == dir {
			slog.Warn("watch root removed", "dir", dir)
		}
	}
}

func (w *Watcher) emit(emit func(ChangeEvent), path string, kind Kind) {
	area, team, file := classify(w.teamsDir, w.tasksDir, path)
	slog.Info("file changed", "event", kind, "area", area, "file", file)
	emit(ChangeEvent{
		Kind: kind,
		Area: area,
		Team: team,
		File: file,
		Time: w.now(),
	})
}

func cleanRoot(dir string) string {
	if dir == "" {
		return ""
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
