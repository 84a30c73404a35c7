package watcher

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer coalesces bursts of fsnotify events per path behind a single
// timer per path, matching the teacher's per-batch debouncer but keyed
// individually so one noisy path's timer doesn't hold up another's flush.
type debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	timers   map[string]*time.Timer
	lastOp   map[string]fsnotify.Op
	onSettle func(path string, op fsnotify.Op)
}

func newDebouncer(window time.Duration, onSettle func(path string, op fsnotify.Op)) *debouncer {
	return &debouncer{
		window:   window,
		timers:   make(map[string]*time.Timer),
		lastOp:   make(map[string]fsnotify.Op),
		onSettle: onSettle,
	}
}

func (d *debouncer) add(path string, op fsnotify.Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastOp[path] |= op
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.window, func() { d.settle(path) })
}

func (d *debouncer) settle(path string) {
	d.mu.Lock()
	op := d.lastOp[path]
	delete(d.lastOp, path)
	delete(d.timers, path)
	d.mu.Unlock()

	d.onSettle(path, op)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
	d.lastOp = make(map[string]fsnotify.Op)
}
