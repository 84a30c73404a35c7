package include

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lexera/boardcore/internal/board"
)

func TestLoadColumnPopulatesCardsFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "todo.md"), []byte("first\n\n---\n\nsecond\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := NewLoader(NewMap())
	col := &board.Column{Title: "!!!include(todo.md)!!!"}
	visited := map[string]bool{}

	if err := l.LoadColumn(dir, col, visited); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}
	if col.Include == nil || col.Include.RawPath != "todo.md" {
		t.Fatalf("expected Include to be set, got %+v", col.Include)
	}
	if len(col.Cards) != 2 || col.Cards[0].Content != "first" || col.Cards[1].Content != "second" {
		t.Fatalf("unexpected cards: %+v", col.Cards)
	}
}

func TestLoadColumnNonIncludeColumnIsNoop(t *testing.T) {
	l := NewLoader(NewMap())
	col := &board.Column{Title: "To Do", Cards: []board.Card{{Content: "existing"}}}
	visited := map[string]bool{}

	if err := l.LoadColumn("/boards", col, visited); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}
	if col.Include != nil {
		t.Fatal("expected Include to remain nil for a non-include column")
	}
	if len(col.Cards) != 1 {
		t.Fatal("expected the existing cards to be untouched")
	}
}

func TestLoadColumnDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.md")
	if err := os.WriteFile(path, []byte("card"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := NewLoader(NewMap())
	col := &board.Column{Title: "!!!include(todo.md)!!!"}
	visited := map[string]bool{path: true}

	err := l.LoadColumn(dir, col, visited)
	if _, ok := err.(ErrCycle); !ok {
		t.Fatalf("expected an ErrCycle, got %v", err)
	}
}

func TestLoadColumnReadFailureReturnsError(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(NewMap())
	col := &board.Column{Title: "!!!include(missing.md)!!!"}
	visited := map[string]bool{}

	if err := l.LoadColumn(dir, col, visited); err == nil {
		t.Fatal("expected an error reading a missing include file")
	}
}

func TestLoadBoardIncludesRegistersMapAndContinuesPastErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "todo.md"), []byte("a card"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b := &board.Board{
		Shape: board.ShapeLegacy,
		Columns: []board.Column{
			{Title: "!!!include(todo.md)!!!"},
			{Title: "!!!include(missing.md)!!!"},
			{Title: "Plain", Cards: []board.Card{{Content: "inline card"}}},
		},
	}

	m := NewMap()
	l := NewLoader(m)
	visited := map[string]bool{}

	errs := l.LoadBoardIncludes("board-a", dir, b, visited)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for the missing include, got %d: %v", len(errs), errs)
	}
	if len(b.Columns[0].Cards) != 1 {
		t.Fatalf("expected the valid include column to be loaded, got %+v", b.Columns[0].Cards)
	}
	if len(b.Columns[1].Cards) != 0 {
		t.Fatalf("expected the failed include column's cards to be empty, got %+v", b.Columns[1].Cards)
	}
	if len(b.Columns[2].Cards) != 1 {
		t.Fatal("expected the plain column's inline cards to be untouched")
	}

	paths := m.PathsForBoard("board-a")
	if len(paths) != 2 {
		t.Fatalf("expected both include columns registered in the map, got %v", paths)
	}
}

func TestRenderColumnProducesSlideBytes(t *testing.T) {
	l := NewLoader(NewMap())
	col := &board.Column{
		Include: &board.IncludeSource{RawPath: "todo.md", ResolvedPath: "/boards/todo.md"},
		Cards:   []board.Card{{Content: "first"}, {Content: "second"}},
	}

	path, content, ok := l.RenderColumn(col)
	if !ok {
		t.Fatal("expected RenderColumn to succeed for an include column")
	}
	if path != "/boards/todo.md" {
		t.Fatalf("path = %q, want /boards/todo.md", path)
	}
	if string(content) != RenderSlides(col.Cards) {
		t.Fatalf("content mismatch: %q", content)
	}
}

func TestRenderColumnFailsForNonIncludeColumn(t *testing.T) {
	l := NewLoader(NewMap())
	col := &board.Column{Title: "Plain"}

	if _, _, ok := l.RenderColumn(col); ok {
		t.Fatal("expected RenderColumn to fail for a non-include column")
	}
}
