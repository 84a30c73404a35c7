// Package storage owns the board_id -> state map, the per-board write
// lock, and the algorithms that keep a board's on-disk markdown, its
// replicated CRDT, and its search index in agreement.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/crdt"
	"github.com/lexera/boardcore/internal/include"
	"github.com/lexera/boardcore/internal/kid"
	"github.com/lexera/boardcore/internal/logging"
	"github.com/lexera/boardcore/internal/parser"
	"github.com/lexera/boardcore/internal/searchindex"
	"github.com/lexera/boardcore/internal/selfwrite"
	"github.com/lexera/boardcore/internal/watcher"
)

// snapshotRate and snapshotBurst bound how often the engine persists a
// CRDT snapshot to disk; the main markdown file (durable via atomicWrite
// on every write) is the source of truth, so a skipped snapshot under an
// edit burst just means the next allowed save catches up.
const (
	snapshotRate  = 20 // per second
	snapshotBurst = 5
)

var log = logging.New("storage")

// boardState is the engine's in-memory record for one tracked board.
type boardState struct {
	ID          string
	Path        string // empty for remote (synthetic) boards
	Dir         string
	Board       *board.Board
	Bridge      *crdt.Bridge
	ContentHash string
	ModTime     time.Time
	Version     uint64
	Remote      bool
}

// Engine is the storage engine described in the design: a board_id ->
// BoardState map guarded by a readers-writer lock, with per-board write
// locks created lazily in an inner map.
type Engine struct {
	mu     sync.RWMutex
	boards map[string]*boardState

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	selfWrite     *selfwrite.Tracker
	includeMap    *include.Map
	includeLoader *include.Loader
	watcher       *watcher.Watcher
	index         *searchindex.Index

	sessionsMu sync.Mutex
	sessions   map[string]*liveSession

	snapshotLimiter *rate.Limiter

	now func() time.Time
}

// New creates an empty Engine over incMap, watch, and idx, with self-write
// fingerprints retained for fingerprintTTL (a non-positive value falls back
// to selfwrite.TTL). incMap must be the same instance given to watcher.New
// so that include-file watches and board->path resolution stay in
// agreement; pass include.NewMap() when constructing both. watch and idx
// may be nil: a nil watcher means no filesystem notifications are wired up
// (useful for tests and for remote-only deployments); a nil search index
// means search always falls back to a full scan.
func New(incMap *include.Map, watch *watcher.Watcher, idx *searchindex.Index, fingerprintTTL time.Duration) *Engine {
	if incMap == nil {
		incMap = include.NewMap()
	}
	return &Engine{
		boards:          make(map[string]*boardState),
		locks:           make(map[string]*sync.Mutex),
		selfWrite:       selfwrite.New(fingerprintTTL),
		includeMap:      incMap,
		includeLoader:   include.NewLoader(incMap),
		watcher:         watch,
		index:           idx,
		sessions:        make(map[string]*liveSession),
		snapshotLimiter: rate.NewLimiter(rate.Limit(snapshotRate), snapshotBurst),
		now:             time.Now,
	}
}

// Close stops the background self-write sweep and the search index.
func (e *Engine) Close() error {
	e.selfWrite.Stop()
	if e.index == nil {
		return nil
	}
	return e.index.Close()
}

// BoardID derives the stable board identifier from an absolute path:
// lowercase hex of the first 6 bytes of SHA-256(path).
func BoardID(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:6])
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// rebuildIndex refreshes a board's search index rows, if an index is
// configured; a nil index means search always falls back to a full scan.
func (e *Engine) rebuildIndex(ctx context.Context, id, title string, b *board.Board) {
	if e.index == nil {
		return
	}
	if err := e.index.RebuildBoard(ctx, id, title, b, e.now()); err != nil {
		log.Warn("rebuild search index failed", "board_id", id, "err", err)
	}
}

// saveSnapshot persists br's CRDT snapshot to crdtPath, throttled by
// snapshotLimiter so a burst of rapid edits doesn't turn every single write
// into a disk fsync; a throttled call is a no-op, not an error, since the
// on-disk markdown file already carries the durable state.
func (e *Engine) saveSnapshot(crdtPath string, br *crdt.Bridge) {
	if !e.snapshotLimiter.Allow() {
		return
	}
	snap, err := br.Save()
	if err != nil {
		log.Warn("crdt snapshot encode failed", "path", crdtPath, "err", err)
		return
	}
	if err := atomicWrite(crdtPath, snap); err != nil {
		log.Warn("crdt snapshot write failed", "path", crdtPath, "err", err)
	}
}

func (e *Engine) dropLock(id string) {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	delete(e.locks, id)
}

func (e *Engine) getState(id string) (*boardState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.boards[id]
	if !ok {
		return nil, &BoardNotFoundError{ID: id}
	}
	return st, nil
}

func (e *Engine) setState(id string, st *boardState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boards[id] = st
}

// AddBoard reads, parses, and registers the board at path. The board must
// parse with a valid kanban-plugin header. Includes are resolved and
// loaded with cycle detection seeded by the board's own canonical path. A
// companion CRDT at "{path}.crdt" is loaded if present; otherwise one is
// built from the parsed board and saved fresh.
func (e *Engine) AddBoard(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ioError(err)
	}
	if canon, err := filepath.EvalSymlinks(abs); err == nil {
		abs = canon
	}
	id := BoardID(abs)
	dir := filepath.Dir(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", ioError(err)
	}
	b, err := parser.Parse(string(data))
	if err != nil {
		return "", ioError(err)
	}
	if !b.Valid {
		return "", &InvalidBoardError{Path: abs}
	}

	visited := map[string]bool{abs: true}
	for _, loadErr := range e.includeLoader.LoadBoardIncludes(id, dir, b, visited) {
		log.Warn("include load failed", "path", abs, "err", loadErr)
	}

	normalizeKids(b)

	br, err := e.loadOrBuildCRDT(abs, b)
	if err != nil {
		return "", ioError(err)
	}

	st := &boardState{
		ID:          id,
		Path:        abs,
		Dir:         dir,
		Board:       b,
		Bridge:      br,
		ContentHash: selfwrite.Hash(string(data)),
		Version:     1,
	}
	if info, err := os.Stat(abs); err == nil {
		st.ModTime = info.ModTime()
	}
	e.setState(id, st)

	if e.watcher != nil {
		if err := e.watcher.WatchMainFile(abs, id); err != nil {
			log.Warn("watch main file failed", "path", abs, "err", err)
		}
		for _, p := range e.includeMap.PathsForBoard(id) {
			if err := e.watcher.WatchIncludeFile(p); err != nil {
				log.Warn("watch include file failed", "path", p, "err", err)
			}
		}
	}
	e.rebuildIndex(ctx, id, b.Title, b)

	return id, nil
}

// loadOrBuildCRDT loads "{path}.crdt" if present and readable, otherwise
// builds a fresh bridge from b and persists a snapshot. A corrupt
// companion file is renamed aside and rebuilt, rather than failing the
// whole add_board call.
func (e *Engine) loadOrBuildCRDT(path string, b *board.Board) (*crdt.Bridge, error) {
	crdtPath := path + ".crdt"
	data, err := os.ReadFile(crdtPath)
	if err == nil {
		br := crdt.NewBridge(crdt.DefaultPeer)
		if loadErr := br.Load(data); loadErr == nil {
			return br, nil
		}
		corrupt := crdtPath + ".corrupt"
		_ = os.Rename(crdtPath, corrupt)
		log.Warn("corrupt crdt snapshot renamed aside", "path", crdtPath, "renamed_to", corrupt)
	}

	br := crdt.FromBoard(b, crdt.DefaultPeer)
	if snap, err := br.Save(); err == nil {
		_ = atomicWrite(crdtPath, snap)
	}
	return br, nil
}

// ReadBoard returns a snapshot of the board's current in-memory value.
func (e *Engine) ReadBoard(id string) (*board.Board, error) {
	st, err := e.getState(id)
	if err != nil {
		return nil, err
	}
	return st.Board, nil
}

// RemoveBoard drops the board's state, its write lock, and its include-map
// entries. The on-disk file is left untouched.
func (e *Engine) RemoveBoard(ctx context.Context, id string) error {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	st, ok := e.boards[id]
	if !ok {
		e.mu.Unlock()
		return &BoardNotFoundError{ID: id}
	}
	delete(e.boards, id)
	e.mu.Unlock()

	e.dropLock(id)
	e.includeMap.RemoveBoard(id)
	if e.watcher != nil && st.Path != "" {
		e.watcher.UnwatchMainFile(st.Path)
	}
	if e.index != nil {
		if err := e.index.RemoveBoard(ctx, id); err != nil {
			log.Warn("remove search index rows failed", "board_id", id, "err", err)
		}
	}
	return nil
}

// AddCard appends a new card to the given column from a fresh read-parse
// of disk, resolving the kid from the incoming content (marker or
// generated), then applies the change through the CRDT and persists it.
func (e *Engine) AddCard(ctx context.Context, id string, colIndex int, content string) (string, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.getState(id)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(st.Path)
	if err != nil {
		return "", ioError(err)
	}
	diskBoard, err := parser.Parse(string(data))
	if err != nil {
		return "", ioError(err)
	}
	cols := diskBoard.AllColumns()
	if colIndex < 0 || colIndex >= len(cols) {
		return "", &ColumnOutOfRangeError{Index: colIndex, Max: len(cols) - 1}
	}

	resolvedKid, stripped := kid.Resolve("", content)
	cols[colIndex].Column.Cards = append(cols[colIndex].Column.Cards, board.Card{Kid: resolvedKid, Content: stripped})

	if _, err := e.writeLocked(ctx, id, st, nil, diskBoard); err != nil {
		return "", err
	}
	return resolvedKid, nil
}

// normalizeKids strips any legacy marker and assigns a fresh kid to every
// card missing one. Columns whose title is an include directive are
// skipped; their Include field is not set here.
func normalizeKids(b *board.Board) {
	for _, ref := range b.AllColumns() {
		if _, ok := include.Detect(ref.Column.Title); ok {
			continue
		}
		for i := range ref.Column.Cards {
			c := &ref.Column.Cards[i]
			resolved, stripped := kid.Resolve(c.Kid, c.Content)
			c.Kid = resolved
			c.Content = stripped
		}
	}
}
