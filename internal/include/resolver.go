// Package include implements the !!!include(path)!!! column directive:
// detecting it, resolving its path, loading/saving the referenced slide
// file, and keeping the board<->include bidirectional map consistent.
package include

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var directivePattern = regexp.MustCompile(`!!!include\(([^)]*)\)!!!`)

// Detect reports whether a column title contains an include directive and,
// if so, returns the raw (as-written) path. Any trailing text (often a
// tag) after the directive is preserved on the title by the caller — this
// function only extracts the path.
func Detect(columnTitle string) (rawPath string, ok bool) {
	m := directivePattern.FindStringSubmatch(columnTitle)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Resolve turns a raw include path into an absolute, canonicalized path
// relative to boardDir. Percent-decoding and leading "./" stripping happen
// first; if the canonicalization (symlink/`..` resolution) fails, the
// joined-but-uncanonicalized path is returned instead.
func Resolve(rawPath, boardDir string) string {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		decoded = rawPath
	}
	decoded = strings.TrimPrefix(decoded, "./")
	joined := filepath.Join(boardDir, decoded)
	if canon, err := filepath.EvalSymlinks(joined); err == nil {
		return canon
	}
	return filepath.Clean(joined)
}

// ColumnRef locates one include-sourced column within a board.
type ColumnRef struct {
	ColumnIndex int
	Title       string
}

// Map is the bidirectional board-id <-> resolved-include-path map. Every
// entry in one direction has a matching entry in the other; RegisterBoard
// maintains that invariant by removing a board's prior entries before
// inserting new ones.
type Map struct {
	mu            sync.Mutex
	boardToPaths  map[string][]boardInclude
	pathToBoards  map[string]map[string]bool
}

type boardInclude struct {
	ColumnIndex int
	Path        string
}

// NewMap creates an empty include map.
func NewMap() *Map {
	return &Map{
		boardToPaths: make(map[string][]boardInclude),
		pathToBoards: make(map[string]map[string]bool),
	}
}

// RegisterBoard replaces boardID's prior include entries with the given
// (column index, raw title) list, resolving each against boardDir.
func (m *Map) RegisterBoard(boardID, boardDir string, refs []ColumnRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeBoardLocked(boardID)

	var entries []boardInclude
	for _, ref := range refs {
		raw, ok := Detect(ref.Title)
		if !ok {
			continue
		}
		resolved := Resolve(raw, boardDir)
		entries = append(entries, boardInclude{ColumnIndex: ref.ColumnIndex, Path: resolved})
		if m.pathToBoards[resolved] == nil {
			m.pathToBoards[resolved] = make(map[string]bool)
		}
		m.pathToBoards[resolved][boardID] = true
	}
	if len(entries) > 0 {
		m.boardToPaths[boardID] = entries
	}
}

// RemoveBoard drops every include-map entry for boardID.
func (m *Map) RemoveBoard(boardID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeBoardLocked(boardID)
}

func (m *Map) removeBoardLocked(boardID string) {
	for _, e := range m.boardToPaths[boardID] {
		if boards := m.pathToBoards[e.Path]; boards != nil {
			delete(boards, boardID)
			if len(boards) == 0 {
				delete(m.pathToBoards, e.Path)
			}
		}
	}
	delete(m.boardToPaths, boardID)
}

// BoardsForPath returns every board id that references the given resolved
// include path.
func (m *Map) BoardsForPath(path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	boards := m.pathToBoards[path]
	out := make([]string, 0, len(boards))
	for b := range boards {
		out = append(out, b)
	}
	return out
}

// PathsForBoard returns the resolved include paths boardID references.
func (m *Map) PathsForBoard(boardID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.boardToPaths[boardID]
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

// IsIncludePath reports whether any board currently references path.
func (m *Map) IsIncludePath(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pathToBoards[path]) > 0
}

// ErrCycle is returned when an include load would revisit a path already
// in the caller's visited set.
type ErrCycle struct{ Path string }

func (e ErrCycle) Error() string { return fmt.Sprintf("include cycle detected at %s", e.Path) }
