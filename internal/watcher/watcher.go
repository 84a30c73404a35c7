// Package watcher watches the parent directories of tracked board files and
// include files for changes, debounces bursts of events, and classifies
// each settled path against the storage engine's registries before handing
// it off on a broadcast channel. It never reads file contents — that is the
// storage engine's job.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lexera/boardcore/internal/include"
)

// Debounce is the coalescing window applied to raw fsnotify events for a
// given path, chosen to absorb macOS FSEvents coalescing and cloud-sync
// transients.
const Debounce = 500 * time.Millisecond

// EventKind classifies a settled, debounced event.
type EventKind int

const (
	MainFileChanged EventKind = iota
	IncludeFileChanged
	FileCreated
	FileDeleted
)

// Event is one classified, debounced filesystem change.
type Event struct {
	Kind        EventKind
	Path        string
	BoardID     string   // set for MainFileChanged
	BoardIDs    []string // set for IncludeFileChanged
	IncludePath string   // set for IncludeFileChanged
}

// Watcher owns one fsnotify.Watcher over a set of parent directories, plus
// the registries needed to classify a settled path without reading it.
type Watcher struct {
	fsw *fsnotify.Watcher

	mu          sync.Mutex
	watchedDirs map[string]bool
	mainFiles   map[string]string // canonical path -> board id
	includeMap  *include.Map

	deb *debouncer

	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Watcher backed by incMap for include-path classification,
// coalescing raw fsnotify events for a given path within debounce. incMap
// may be updated concurrently by the storage engine; the watcher reads it
// fresh on every debounced flush. A non-positive debounce falls back to
// Debounce.
func New(incMap *include.Map, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = Debounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:         fsw,
		watchedDirs: make(map[string]bool),
		mainFiles:   make(map[string]string),
		includeMap:  incMap,
		events:      make(chan Event, 256),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	w.deb = newDebouncer(debounce, w.flush)
	return w, nil
}

// Events returns the broadcast channel settled, classified events are sent
// on. Slow subscribers are expected to lag; the channel is not fanned out
// to multiple readers by this package.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start launches the event-processing and debounce goroutines.
func (w *Watcher) Start() {
	go w.processRaw()
}

// Stop tears down the underlying fsnotify watcher and waits for the
// processing goroutine to exit.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	err := w.fsw.Close()
	<-w.doneCh
	w.deb.stop()
	return err
}

// WatchMainFile registers path as a board-main file and ensures its parent
// directory is watched (each parent directory is watched at most once,
// regardless of how many tracked files share it).
func (w *Watcher) WatchMainFile(path, boardID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mainFiles[path] = boardID
	return w.ensureDirWatchedLocked(path)
}

// UnwatchMainFile removes path's board-main registration. The parent
// directory watch is left in place: another tracked file (main or include)
// may still need it, and fsnotify.Remove on a directory still watched by
// nothing living is harmless noise, not a correctness issue.
func (w *Watcher) UnwatchMainFile(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.mainFiles, path)
}

// WatchIncludeFile ensures the parent directory of an include file is
// watched. The include map itself already tracks which boards reference
// which path; this just guarantees filesystem coverage.
func (w *Watcher) WatchIncludeFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensureDirWatchedLocked(path)
}

func (w *Watcher) ensureDirWatchedLocked(path string) error {
	dir := filepath.Dir(path)
	if w.watchedDirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watchedDirs[dir] = true
	return nil
}

func (w *Watcher) processRaw() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.deb.add(ev.Name, ev.Op)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// flush is called by the debouncer once a path's events have settled; it
// classifies the path against the two registries and emits the resulting
// event, dropping silently if the path matches neither.
func (w *Watcher) flush(path string, op fsnotify.Op) {
	w.mu.Lock()
	boardID, isMain := w.mainFiles[path]
	w.mu.Unlock()

	var ev Event
	switch {
	case isMain && op&fsnotify.Remove != 0:
		ev = Event{Kind: FileDeleted, Path: path, BoardID: boardID}
	case isMain && op&fsnotify.Create != 0:
		ev = Event{Kind: FileCreated, Path: path, BoardID: boardID}
	case isMain:
		ev = Event{Kind: MainFileChanged, Path: path, BoardID: boardID}
	case w.includeMap != nil && w.includeMap.IsIncludePath(path):
		ev = Event{Kind: IncludeFileChanged, Path: path, IncludePath: path, BoardIDs: w.includeMap.BoardsForPath(path)}
	default:
		return
	}

	select {
	case w.events <- ev:
	default:
		// broadcast channel full: drop rather than block the watcher.
	}
}
