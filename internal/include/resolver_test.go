package include

import "testing"

func TestDetectFindsDirective(t *testing.T) {
	raw, ok := Detect("!!!include(todo.md)!!!")
	if !ok || raw != "todo.md" {
		t.Fatalf("Detect = (%q, %v), want (todo.md, true)", raw, ok)
	}
}

func TestDetectIgnoresTrailingText(t *testing.T) {
	raw, ok := Detect("!!!include(sub/todo.md)!!! #tag")
	if !ok || raw != "sub/todo.md" {
		t.Fatalf("Detect = (%q, %v), want (sub/todo.md, true)", raw, ok)
	}
}

func TestDetectReturnsFalseForPlainTitle(t *testing.T) {
	if _, ok := Detect("To Do"); ok {
		t.Fatal("expected Detect to report false for a plain column title")
	}
}

func TestResolveJoinsAgainstBoardDir(t *testing.T) {
	got := Resolve("todo.md", "/boards/sprint")
	want := "/boards/sprint/todo.md"
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveStripsLeadingDotSlash(t *testing.T) {
	got := Resolve("./todo.md", "/boards/sprint")
	want := "/boards/sprint/todo.md"
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolvePercentDecodes(t *testing.T) {
	got := Resolve("sub%20dir/todo.md", "/boards/sprint")
	want := "/boards/sprint/sub dir/todo.md"
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestMapRegisterBoardBuildsBidirectionalLinks(t *testing.T) {
	m := NewMap()
	m.RegisterBoard("board-a", "/boards", []ColumnRef{
		{ColumnIndex: 0, Title: "!!!include(todo.md)!!!"},
	})

	paths := m.PathsForBoard("board-a")
	if len(paths) != 1 || paths[0] != "/boards/todo.md" {
		t.Fatalf("PathsForBoard = %v, want [/boards/todo.md]", paths)
	}

	boards := m.BoardsForPath("/boards/todo.md")
	if len(boards) != 1 || boards[0] != "board-a" {
		t.Fatalf("BoardsForPath = %v, want [board-a]", boards)
	}

	if !m.IsIncludePath("/boards/todo.md") {
		t.Fatal("expected IsIncludePath to report true for a registered path")
	}
	if m.IsIncludePath("/boards/other.md") {
		t.Fatal("expected IsIncludePath to report false for an unregistered path")
	}
}

func TestMapRegisterBoardReplacesPriorEntries(t *testing.T) {
	m := NewMap()
	m.RegisterBoard("board-a", "/boards", []ColumnRef{
		{ColumnIndex: 0, Title: "!!!include(old.md)!!!"},
	})
	m.RegisterBoard("board-a", "/boards", []ColumnRef{
		{ColumnIndex: 0, Title: "!!!include(new.md)!!!"},
	})

	if m.IsIncludePath("/boards/old.md") {
		t.Fatal("expected the stale include path to have been dropped")
	}
	if !m.IsIncludePath("/boards/new.md") {
		t.Fatal("expected the new include path to be registered")
	}
}

func TestMapSharedIncludePathTracksMultipleBoards(t *testing.T) {
	m := NewMap()
	m.RegisterBoard("board-a", "/boards", []ColumnRef{{ColumnIndex: 0, Title: "!!!include(shared.md)!!!"}})
	m.RegisterBoard("board-b", "/boards", []ColumnRef{{ColumnIndex: 0, Title: "!!!include(shared.md)!!!"}})

	boards := m.BoardsForPath("/boards/shared.md")
	if len(boards) != 2 {
		t.Fatalf("expected both boards to reference the shared path, got %v", boards)
	}

	m.RemoveBoard("board-a")
	boards = m.BoardsForPath("/boards/shared.md")
	if len(boards) != 1 || boards[0] != "board-b" {
		t.Fatalf("expected only board-b to remain, got %v", boards)
	}
}

func TestMapRemoveBoardDropsAllItsEntries(t *testing.T) {
	m := NewMap()
	m.RegisterBoard("board-a", "/boards", []ColumnRef{{ColumnIndex: 0, Title: "!!!include(todo.md)!!!"}})
	m.RemoveBoard("board-a")

	if len(m.PathsForBoard("board-a")) != 0 {
		t.Fatal("expected no paths for a removed board")
	}
	if m.IsIncludePath("/boards/todo.md") {
		t.Fatal("expected the path to no longer be tracked after removal")
	}
}

func TestErrCycleMessageIncludesPath(t *testing.T) {
	err := ErrCycle{Path: "/boards/todo.md"}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}
