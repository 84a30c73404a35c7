package board

import "testing"

func TestAllColumnsLegacyOrder(t *testing.T) {
	b := &Board{Shape: ShapeLegacy, Columns: []Column{
		{Title: "To Do"},
		{Title: "Done"},
	}}
	refs := b.AllColumns()
	if len(refs) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(refs))
	}
	if refs[0].Column.Title != "To Do" || refs[1].Column.Title != "Done" {
		t.Fatalf("unexpected order: %+v", refs)
	}
	if refs[0].RowIdx != -1 || refs[0].StackIdx != -1 {
		t.Fatalf("expected legacy columns to carry -1 row/stack indices, got %+v", refs[0])
	}
	if refs[0].FlatIndex != 0 || refs[1].FlatIndex != 1 {
		t.Fatalf("unexpected flat indices: %+v %+v", refs[0], refs[1])
	}
}

func TestAllColumnsHierarchicalOrder(t *testing.T) {
	b := &Board{Shape: ShapeHierarchical, Rows: []Row{
		{Title: "Row 1", Stacks: []Stack{
			{Title: "Stack A", Columns: []Column{{Title: "To Do"}, {Title: "Doing"}}},
			{Title: "Stack B", Columns: []Column{{Title: "Done"}}},
		}},
	}}
	refs := b.AllColumns()
	if len(refs) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(refs))
	}
	titles := []string{refs[0].Column.Title, refs[1].Column.Title, refs[2].Column.Title}
	want := []string{"To Do", "Doing", "Done"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("order = %v, want %v", titles, want)
		}
	}
	if refs[2].RowIdx != 0 || refs[2].StackIdx != 1 || refs[2].ColIdx != 0 {
		t.Fatalf("unexpected indices for last column: %+v", refs[2])
	}
}

func TestAllColumnsMutatesUnderlyingBoard(t *testing.T) {
	b := &Board{Shape: ShapeLegacy, Columns: []Column{{Title: "To Do"}}}
	refs := b.AllColumns()
	refs[0].Column.Title = "Renamed"
	if b.Columns[0].Title != "Renamed" {
		t.Fatal("expected ColumnRef.Column to point into the original board's slice")
	}
}

func TestNormalizeDefaultRowWrapsLegacyColumns(t *testing.T) {
	b := &Board{Shape: ShapeLegacy, Columns: []Column{{Title: "To Do"}, {Title: "Done"}}}
	rows := b.NormalizeDefaultRow()
	if len(rows) != 1 || rows[0].Title != "Default" {
		t.Fatalf("expected a single Default row, got %+v", rows)
	}
	if len(rows[0].Stacks) != 1 || rows[0].Stacks[0].Title != "Default" {
		t.Fatalf("expected a single Default stack, got %+v", rows[0].Stacks)
	}
	if len(rows[0].Stacks[0].Columns) != 2 {
		t.Fatalf("expected both legacy columns preserved, got %+v", rows[0].Stacks[0].Columns)
	}
}

func TestNormalizeDefaultRowPassesThroughHierarchical(t *testing.T) {
	want := []Row{{Title: "Row 1"}}
	b := &Board{Shape: ShapeHierarchical, Rows: want}
	got := b.NormalizeDefaultRow()
	if len(got) != 1 || got[0].Title != "Row 1" {
		t.Fatalf("expected hierarchical Rows to pass through unchanged, got %+v", got)
	}
}

func TestSettingsArrayRoundTrips(t *testing.T) {
	s := Settings{
		ColumnWidth: "272", LayoutRows: "2", LayoutPreset: "board",
		RowHeight: "200", FontFamily: "sans", FontSize: "14",
		WhitespaceMode: "pre-line", HTMLCommentMode: "strip", HTMLContentMode: "render",
		TagVisibility: "shown", StickyStackMode: "on", ArrowKeyFocusScroll: "true",
		ColorBoard: "#fff", ColorColumn: "#eee", ColorCard: "#ddd",
		ColorTag: "#ccc", ColorExtra: "#bbb",
	}
	got := SettingsFromArray(s.Array())
	if got != s {
		t.Fatalf("SettingsFromArray(s.Array()) = %+v, want %+v", got, s)
	}
}

func TestSettingsArrayOrderMatchesSettingsKeys(t *testing.T) {
	s := Settings{ColumnWidth: "first", ColorExtra: "last"}
	arr := s.Array()
	if arr[0] != "first" {
		t.Fatalf("arr[0] = %q, want %q", arr[0], "first")
	}
	if arr[len(arr)-1] != "last" {
		t.Fatalf("arr[last] = %q, want %q", arr[len(arr)-1], "last")
	}
	if len(SettingsKeys) != len(arr) {
		t.Fatalf("SettingsKeys has %d entries, Array has %d", len(SettingsKeys), len(arr))
	}
}
