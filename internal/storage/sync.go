package storage

import (
	"context"
	"fmt"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/crdt"
	"github.com/lexera/boardcore/internal/parser"
)

// GetCRDTVV returns the board's current replica version vector, for a
// caller that wants to compute what it's missing without opening a
// full live-sync session.
func (e *Engine) GetCRDTVV(id string) (crdt.VersionVector, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.getState(id)
	if err != nil {
		return nil, err
	}
	if st.Bridge == nil {
		return nil, fmt.Errorf("board %s has no replica", id)
	}
	return st.Bridge.Doc.OplogVV(), nil
}

// ExportCRDTUpdatesSince returns the opaque delta bytes for everything the
// replica knows that vv doesn't.
func (e *Engine) ExportCRDTUpdatesSince(id string, vv crdt.VersionVector) ([]byte, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.getState(id)
	if err != nil {
		return nil, err
	}
	if st.Bridge == nil {
		return nil, fmt.Errorf("board %s has no replica", id)
	}
	return st.Bridge.ExportUpdatesSince(vv)
}

// ExportCRDTSnapshot returns a full binary snapshot of the board's replica,
// for seeding a fresh peer that has no prior version vector at all.
func (e *Engine) ExportCRDTSnapshot(id string) ([]byte, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.getState(id)
	if err != nil {
		return nil, err
	}
	if st.Bridge == nil {
		return nil, fmt.Errorf("board %s has no replica", id)
	}
	return st.Bridge.Save()
}

// ImportCRDTUpdates applies an opaque delta into the board's replica,
// reconciling the in-memory board, persisting an updated on-disk file and
// CRDT snapshot, and reports whether the import actually changed anything
// (compared by version vector before and after).
func (e *Engine) ImportCRDTUpdates(ctx context.Context, id string, updateBytes []byte) (*board.Board, crdt.VersionVector, bool, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	orig, err := e.getState(id)
	if err != nil {
		return nil, nil, false, err
	}
	if orig.Bridge == nil {
		return nil, nil, false, fmt.Errorf("board %s has no replica", id)
	}

	before := orig.Bridge.Doc.OplogVV()
	if err := orig.Bridge.ImportUpdates(updateBytes); err != nil {
		return nil, nil, false, err
	}
	after := orig.Bridge.Doc.OplogVV()
	if vvEqual(before, after) {
		return orig.Board, after, false, nil
	}

	st := *orig
	final := st.Bridge.ToBoard()
	reattachIncludeSources(final, &st)
	st.Board = final

	if st.Path != "" {
		out, err := parser.Generate(final)
		if err == nil {
			if guardErr := guardDataSafety(st.Path, out); guardErr == nil {
				e.selfWrite.Register(st.Path, out)
				if writeErr := atomicWrite(st.Path, []byte(out)); writeErr == nil {
					st.ContentHash = contentHash(out)
				} else {
					log.Warn("crdt import write failed", "path", st.Path, "err", writeErr)
				}
			} else {
				log.Warn("crdt import refused by data safety guard", "path", st.Path, "err", guardErr)
			}
		} else {
			log.Warn("crdt import generate failed", "board_id", id, "err", err)
		}
		e.saveSnapshot(st.Path+".crdt", st.Bridge)
	}
	st.Version++
	e.setState(id, &st)

	e.rebuildIndex(ctx, id, final.Title, final)
	return final, after, true, nil
}

func vvEqual(a, b crdt.VersionVector) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// AddRemoteBoard registers a synthetic, file-less board, for boards that
// only exist through a live-sync session (no on-disk markdown).
func (e *Engine) AddRemoteBoard(ctx context.Context, id string, initial *board.Board) error {
	normalizeKids(initial)
	br := crdt.FromBoard(initial, crdt.DefaultPeer)
	st := &boardState{
		ID:      id,
		Board:   initial,
		Bridge:  br,
		Version: 1,
		Remote:  true,
	}
	e.setState(id, st)
	e.rebuildIndex(ctx, id, initial.Title, initial)
	return nil
}

// RemoveRemoteBoard drops a synthetic board's state.
func (e *Engine) RemoveRemoteBoard(ctx context.Context, id string) error {
	return e.RemoveBoard(ctx, id)
}

// ListRemoteBoards returns the ids of every tracked board with no backing
// file.
func (e *Engine) ListRemoteBoards() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for id, st := range e.boards {
		if st.Remote {
			out = append(out, id)
		}
	}
	return out
}
