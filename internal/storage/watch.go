package storage

import (
	"context"
	"os"

	"github.com/lexera/boardcore/internal/watcher"
)

// RunWatchLoop drains watcher events until ctx is cancelled, dispatching
// each to HandleWatchEvent. It is meant to run in its own goroutine for the
// lifetime of a running engine. A nil watcher (no filesystem notifications
// wired up) makes this a no-op.
func (e *Engine) RunWatchLoop(ctx context.Context) {
	if e.watcher == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.watcher.Events():
			if !ok {
				return
			}
			if err := e.HandleWatchEvent(ctx, ev); err != nil {
				log.Warn("watch event handling failed", "path", ev.Path, "err", err)
			}
		}
	}
}

// HandleWatchEvent reacts to one classified watcher event: a main-file or
// include-file change triggers a reload of the affected board(s), unless
// the self-write tracker recognizes the read content as the engine's own
// preceding write, in which case it is absorbed silently. Created/deleted
// events are ignored and return nil; the engine does not auto-add or
// auto-remove boards on its own.
func (e *Engine) HandleWatchEvent(ctx context.Context, ev watcher.Event) error {
	switch ev.Kind {
	case watcher.MainFileChanged:
		if e.absorbedBySelfWrite(ev.Path) {
			return nil
		}
		return e.ReloadBoard(ctx, ev.BoardID)

	case watcher.IncludeFileChanged:
		if e.absorbedBySelfWrite(ev.Path) {
			return nil
		}
		var firstErr error
		for _, id := range ev.BoardIDs {
			if err := e.ReloadBoard(ctx, id); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr

	case watcher.FileCreated, watcher.FileDeleted:
		// Ignored: the engine tracks board
		// lifecycle explicitly through AddBoard/RemoveBoard rather than
		// reacting to filesystem churn on its own.
		return nil
	}
	return nil
}

func (e *Engine) absorbedBySelfWrite(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return e.selfWrite.Consume(path, string(data))
}
