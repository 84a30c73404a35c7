package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/crdt"
	"github.com/lexera/boardcore/internal/diffmerge"
	"github.com/lexera/boardcore/internal/include"
	"github.com/lexera/boardcore/internal/parser"
	"github.com/lexera/boardcore/internal/selfwrite"
)

// WriteResult is returned when a merge ran during a write. A nil result
// from WriteBoard/WriteBoardFromBase means a clean write with no merge.
type WriteResult struct {
	AutoMerged int
	Conflicts  []diffmerge.Conflict
	Board      *board.Board
}

// WriteBoard is the base-less write entry point.
func (e *Engine) WriteBoard(ctx context.Context, id string, candidate *board.Board) (*WriteResult, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.getState(id)
	if err != nil {
		return nil, err
	}
	return e.writeLocked(ctx, id, st, nil, candidate)
}

// WriteBoardFromBase is the base-aware write entry point.
func (e *Engine) WriteBoardFromBase(ctx context.Context, id string, base, candidate *board.Board) (*WriteResult, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.getState(id)
	if err != nil {
		return nil, err
	}
	return e.writeLocked(ctx, id, st, base, candidate)
}

// writeLocked implements the ten-step write algorithm under the caller's
// already-held per-board lock. It mutates a private copy of st throughout
// and only publishes the result via setState once, at the very end, so a
// concurrent ReadBoard sees either the pre-write or the post-write state
// and never a mid-transaction one.
func (e *Engine) writeLocked(ctx context.Context, id string, orig *boardState, base, candidate *board.Board) (*WriteResult, error) {
	st := *orig

	// Step 1: take the CRDT replica out of state.
	br := st.Bridge
	st.Bridge = nil

	// Step 2: read current on-disk markdown; compute its hash vs. the
	// stored hash.
	diskData, readErr := os.ReadFile(st.Path)
	var diskHash string
	var diskBoard *board.Board
	if readErr == nil {
		diskHash = contentHash(string(diskData))
		if b, err := parser.Parse(string(diskData)); err == nil {
			diskBoard = b
		}
	}

	// Step 3: normalize the candidate.
	normalizeKids(candidate)
	reattachIncludeSources(candidate, &st)

	var result *WriteResult
	final := candidate

	switch {
	case br != nil:
		current := br.ToBoard()
		if hasCardMissingKid(current) {
			normalizeKids(current)
			br.Rebuild(current)
			current = br.ToBoard()
		}
		if base != nil {
			mergeRes := diffmerge.ThreeWayMerge(base, current, candidate)
			br.ApplyBoard(mergeRes.Board, current)
			final = br.ToBoard()
			reattachIncludeSources(final, &st)
			if br.StructuralMismatch(candidate) {
				br.Rebuild(candidate)
				final = candidate
			}
			result = &WriteResult{AutoMerged: mergeRes.AutoMerged, Conflicts: mergeRes.Conflicts, Board: final}
		} else {
			br.ApplyBoard(candidate, current)
			final = br.ToBoard()
			reattachIncludeSources(final, &st)
			if br.StructuralMismatch(candidate) {
				br.Rebuild(candidate)
				final = candidate
			}
		}

	case base != nil && diskBoard != nil:
		mergeRes := diffmerge.ThreeWayMerge(base, diskBoard, candidate)
		final = mergeRes.Board
		if len(mergeRes.Conflicts) > 0 {
			if err := writeConflictBackup(st.Path, candidate, e.now()); err != nil {
				log.Warn("conflict backup failed", "path", st.Path, "err", err)
			}
		}
		result = &WriteResult{AutoMerged: mergeRes.AutoMerged, Conflicts: mergeRes.Conflicts, Board: final}
		br = crdt.FromBoard(final, crdt.DefaultPeer)

	case diskBoard != nil && diskHash != "" && diskHash != st.ContentHash:
		mergeRes := diffmerge.ThreeWayMerge(st.Board, diskBoard, candidate)
		final = mergeRes.Board
		if len(mergeRes.Conflicts) > 0 {
			if err := writeConflictBackup(st.Path, candidate, e.now()); err != nil {
				log.Warn("conflict backup failed", "path", st.Path, "err", err)
			}
		}
		result = &WriteResult{AutoMerged: mergeRes.AutoMerged, Conflicts: mergeRes.Conflicts, Board: final}
		br = crdt.FromBoard(final, crdt.DefaultPeer)

	default:
		final = candidate
		br = crdt.FromBoard(final, crdt.DefaultPeer)
	}

	// Step 8: serialize and atomically write the main file plus any
	// include columns.
	out, err := parser.Generate(final)
	if err != nil {
		return nil, ioError(err)
	}
	if err := guardDataSafety(st.Path, out); err != nil {
		return nil, err
	}
	e.selfWrite.Register(st.Path, out)
	if err := atomicWrite(st.Path, []byte(out)); err != nil {
		return nil, ioError(err)
	}
	for _, ref := range final.AllColumns() {
		if ref.Column.Include == nil {
			continue
		}
		path, content, ok := e.includeLoader.RenderColumn(ref.Column)
		if !ok {
			continue
		}
		e.selfWrite.Register(path, string(content))
		if err := atomicWrite(path, content); err != nil {
			log.Warn("include write failed", "path", path, "err", err)
		}
	}

	// Step 9: save the CRDT snapshot (best effort, rate-limited).
	e.saveSnapshot(st.Path+".crdt", br)

	// Step 10: update state.
	st.Board = final
	st.Bridge = br
	st.ContentHash = contentHash(out)
	st.Version++
	if info, err := os.Stat(st.Path); err == nil {
		st.ModTime = info.ModTime()
	}
	e.setState(id, &st)

	e.rebuildIndex(ctx, id, final.Title, final)

	return result, nil
}

// ReloadBoard implements the watcher-path reload algorithm: external edits
// flow into the CRDT as the authoritative side, merge-free.
func (e *Engine) ReloadBoard(ctx context.Context, id string) error {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	orig, err := e.getState(id)
	if err != nil {
		return err
	}
	st := *orig

	br := st.Bridge
	st.Bridge = nil

	data, err := os.ReadFile(st.Path)
	if err != nil {
		return ioError(err)
	}
	newBoard, err := parser.Parse(string(data))
	if err != nil {
		return ioError(err)
	}
	if !newBoard.Valid {
		return &InvalidBoardError{Path: st.Path}
	}

	visited := map[string]bool{st.Path: true}
	for _, loadErr := range e.includeLoader.LoadBoardIncludes(id, st.Dir, newBoard, visited) {
		log.Warn("include reload failed", "path", st.Path, "err", loadErr)
	}
	normalizeKids(newBoard)

	oldBoard := st.Board
	if br == nil {
		br = crdt.FromBoard(newBoard, crdt.DefaultPeer)
	} else {
		br.ApplyBoard(newBoard, oldBoard)
		br.Header, br.Footer, br.Settings = newBoard.Header, newBoard.Footer, newBoard.Settings
	}

	e.saveSnapshot(st.Path+".crdt", br)

	st.Board = newBoard
	st.Bridge = br
	st.ContentHash = contentHash(string(data))
	st.Version++
	if info, err := os.Stat(st.Path); err == nil {
		st.ModTime = info.ModTime()
	}
	e.setState(id, &st)

	e.rebuildIndex(ctx, id, newBoard.Title, newBoard)
	return nil
}

func hasCardMissingKid(b *board.Board) bool {
	for _, ref := range b.AllColumns() {
		for _, c := range ref.Column.Cards {
			if c.Kid == "" {
				return true
			}
		}
	}
	return false
}

func reattachIncludeSources(b *board.Board, st *boardState) {
	for _, ref := range b.AllColumns() {
		if raw, ok := include.Detect(ref.Column.Title); ok {
			ref.Column.Include = &board.IncludeSource{RawPath: raw, ResolvedPath: include.Resolve(raw, st.Dir)}
		}
	}
}

func contentHash(s string) string {
	return selfwrite.Hash(s)
}

// guardDataSafety refuses to overwrite a non-empty on-disk file with
// content that trims to empty, the DataSafety refusal that protects
// against crash-induced truncation racing a cloud-sync upload.
func guardDataSafety(path, newContent string) error {
	if strings.TrimSpace(newContent) != "" {
		return nil
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if strings.TrimSpace(string(existing)) != "" {
		return dataSafetyRefusal(path)
	}
	return nil
}

// writeConflictBackup saves candidate (the user's write that collided)
// to "{stem}.conflict-{unix_seconds}.md" next to path.
func writeConflictBackup(path string, candidate *board.Board, now time.Time) error {
	out, err := parser.Generate(candidate)
	if err != nil {
		return err
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	backupPath := fmt.Sprintf("%s.conflict-%d.md", stem, now.Unix())
	log.Warn("merge conflict backup written", "path", backupPath)
	return os.WriteFile(backupPath, []byte(out), 0o644)
}

// atomicWrite writes data to path via a temp file, fsync, rename, and
// parent-directory fsync, so a crash mid-write leaves the destination
// file untouched (the rename is the commit).
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, filepath.Base(path)+".lexera-sync.tmp")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	if dirF, err := os.Open(dir); err == nil {
		dirF.Sync()
		dirF.Close()
	}
	return nil
}
