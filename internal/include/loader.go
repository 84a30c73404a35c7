package include

import (
	"fmt"
	"os"

	"github.com/lexera/boardcore/internal/board"
)

// Loader resolves and loads include-sourced columns for a board, tracking
// cycles against a caller-supplied visited set that must be seeded with the
// board's own canonical path before the first call.
type Loader struct {
	Map *Map
}

// NewLoader creates a Loader backed by m.
func NewLoader(m *Map) *Loader {
	return &Loader{Map: m}
}

// LoadColumn populates col.Cards from its include file if col.Title carries
// an include directive. visited must already contain the board's own
// canonical path; LoadColumn adds the resolved include path to visited on
// success so sibling includes can detect a cycle back to this file, but
// never mutates visited on the cycle-refusal path itself.
//
// A cycle returns ErrCycle and a read failure returns the wrapped read
// error; in both cases col.Cards is left as it was. LoadBoardIncludes is
// the caller that turns such an error into an empty column, and logging it
// is left to its caller.
func (l *Loader) LoadColumn(boardDir string, col *board.Column, visited map[string]bool) error {
	raw, ok := Detect(col.Title)
	if !ok {
		return nil
	}
	resolved := Resolve(raw, boardDir)
	col.Include = &board.IncludeSource{RawPath: raw, ResolvedPath: resolved}

	if visited[resolved] {
		return ErrCycle{Path: resolved}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("read include %s: %w", resolved, err)
	}
	visited[resolved] = true
	col.Cards = ParseSlides(string(data))
	return nil
}

// LoadBoardIncludes walks every column of b, loading include-sourced ones
// and registering the board's include paths in l.Map. visited is seeded by
// the caller with the board's own canonical path. Cycle and read errors are
// collected but do not abort the walk: the offending column is left empty
// and the walk continues, since one bad include shouldn't fail the whole
// board load.
func (l *Loader) LoadBoardIncludes(boardID, boardDir string, b *board.Board, visited map[string]bool) []error {
	var errs []error
	var refs []ColumnRef
	for _, ref := range b.AllColumns() {
		if _, ok := Detect(ref.Column.Title); !ok {
			continue
		}
		if err := l.LoadColumn(boardDir, ref.Column, visited); err != nil {
			errs = append(errs, err)
			ref.Column.Cards = nil
		}
		refs = append(refs, ColumnRef{ColumnIndex: ref.FlatIndex, Title: ref.Column.Title})
	}
	if l.Map != nil {
		l.Map.RegisterBoard(boardID, boardDir, refs)
	}
	return errs
}

// RenderColumn regenerates an include column's slide content and returns it
// with its resolved path; it writes nothing. The caller is responsible for
// writing the file, self-write fingerprint registration and atomic rename
// semantics. ok is false for a column that is not include-sourced.
func (l *Loader) RenderColumn(col *board.Column) (path string, content []byte, ok bool) {
	if col.Include == nil {
		return "", nil, false
	}
	return col.Include.ResolvedPath, []byte(RenderSlides(col.Cards)), true
}
