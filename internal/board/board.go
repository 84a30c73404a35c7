// Package board defines the in-memory kanban board model: the structural
// types produced by the parser, consumed by diff/merge and the CRDT bridge,
// and re-serialized back to markdown.
package board

// Shape distinguishes the two on-disk column layouts a board may use.
type Shape int

const (
	// ShapeLegacy is a flat ordered sequence of columns.
	ShapeLegacy Shape = iota
	// ShapeHierarchical is rows of stacks of columns.
	ShapeHierarchical
)

// IncludeSource records where a column's cards actually live when the
// column's title is an include directive rather than an inline list.
type IncludeSource struct {
	RawPath      string // as written inside !!!include(...)!!!
	ResolvedPath string // canonicalized absolute path
}

// Card is a single task. Content never carries a `<!-- kid:xxxxxxxx -->`
// marker after normalization; the marker's value lives in Kid instead.
type Card struct {
	ID      string // transient, regenerated on every parse
	Kid     string // 8 lowercase hex digits, empty until resolved
	Content string
	Checked bool
}

// Column is an ordered bucket of cards, optionally sourced from an include
// file instead of inline list items.
type Column struct {
	ID      string
	Title   string
	Cards   []Card
	Include *IncludeSource // nil unless Title is an include directive
}

// Stack is an ordered sequence of columns inside a Row (hierarchical shape).
type Stack struct {
	ID      string
	Title   string
	Columns []Column
}

// Row is an ordered sequence of stacks (hierarchical shape).
type Row struct {
	ID     string
	Title  string
	Stacks []Stack
}

// Settings is the fixed, canonically-ordered set of board display options
// serialized as `key: value` lines inside the YAML header.
type Settings struct {
	ColumnWidth        string
	LayoutRows         string
	LayoutPreset       string
	RowHeight          string
	FontFamily         string
	FontSize           string
	WhitespaceMode     string
	HTMLCommentMode    string
	HTMLContentMode    string
	TagVisibility      string
	StickyStackMode    string
	ArrowKeyFocusScroll string
	ColorBoard         string
	ColorColumn        string
	ColorCard          string
	ColorTag           string
	ColorExtra         string
}

// SettingsKeys is the canonical serialization order for the 17 settings.
// Index i corresponds to the i-th struct field above; kept as a parallel
// slice so the parser can scan/rewrite lines without reflection.
var SettingsKeys = []string{
	"kanban-plugin-column-width",
	"kanban-plugin-layout-rows",
	"kanban-plugin-layout-preset",
	"kanban-plugin-row-height",
	"kanban-plugin-font-family",
	"kanban-plugin-font-size",
	"kanban-plugin-whitespace",
	"kanban-plugin-html-comment-mode",
	"kanban-plugin-html-content-mode",
	"kanban-plugin-tag-visibility",
	"kanban-plugin-sticky-stack",
	"kanban-plugin-arrow-focus-scroll",
	"kanban-plugin-color-board",
	"kanban-plugin-color-column",
	"kanban-plugin-color-card",
	"kanban-plugin-color-tag",
	"kanban-plugin-color-extra",
}

// IntegerKeys names the settings keys that are coerced as non-negative
// integers rather than passed through as opaque strings.
var IntegerKeys = map[string]bool{
	"kanban-plugin-column-width": true,
	"kanban-plugin-layout-rows":  true,
	"kanban-plugin-row-height":   true,
	"kanban-plugin-font-size":    true,
}

// Array flattens Settings into the canonical positional order SettingsKeys
// uses, for callers (e.g. the CRDT snapshot codec) that need a fixed-size,
// reflection-free representation.
func (s Settings) Array() [17]string {
	return [17]string{
		s.ColumnWidth, s.LayoutRows, s.LayoutPreset, s.RowHeight, s.FontFamily,
		s.FontSize, s.WhitespaceMode, s.HTMLCommentMode, s.HTMLContentMode,
		s.TagVisibility, s.StickyStackMode, s.ArrowKeyFocusScroll,
		s.ColorBoard, s.ColorColumn, s.ColorCard, s.ColorTag, s.ColorExtra,
	}
}

// SettingsFromArray is the inverse of Array.
func SettingsFromArray(a [17]string) Settings {
	return Settings{
		ColumnWidth: a[0], LayoutRows: a[1], LayoutPreset: a[2], RowHeight: a[3],
		FontFamily: a[4], FontSize: a[5], WhitespaceMode: a[6], HTMLCommentMode: a[7],
		HTMLContentMode: a[8], TagVisibility: a[9], StickyStackMode: a[10],
		ArrowKeyFocusScroll: a[11], ColorBoard: a[12], ColorColumn: a[13],
		ColorCard: a[14], ColorTag: a[15], ColorExtra: a[16],
	}
}

// Board is the top-level kanban entity backed by one markdown file.
//
// Invariant: exactly one of Columns (legacy) or Rows (hierarchical) is
// non-empty in canonical form. A hierarchical board with a single row and
// stack both titled "Default" is structurally equivalent to the legacy form
// holding the same columns — AllColumns below makes that equivalence
// explicit instead of letting every consumer special-case the shape.
type Board struct {
	Valid    bool
	Title    string
	Shape    Shape
	Columns  []Column // legacy shape
	Rows     []Row    // hierarchical shape
	Header   string   // raw YAML header text, settings lines included
	Footer   string   // raw %% footer text, if any
	Settings Settings
}

// ColumnRef is a flattened pointer to a column wherever it lives in the
// board's shape, plus its position in flat iteration order.
type ColumnRef struct {
	FlatIndex int
	RowIdx    int // -1 for legacy boards
	StackIdx  int // -1 for legacy boards
	ColIdx    int
	Column    *Column
}

// AllColumns returns every column in the board in flat left-to-right,
// top-to-bottom order, regardless of shape. Callers that don't care about
// row/stack structure (diff, merge, CRDT apply, search) should always use
// this instead of switching on Shape themselves.
func (b *Board) AllColumns() []ColumnRef {
	var out []ColumnRef
	if b.Shape == ShapeLegacy {
		for i := range b.Columns {
			out = append(out, ColumnRef{FlatIndex: len(out), RowIdx: -1, StackIdx: -1, ColIdx: i, Column: &b.Columns[i]})
		}
		return out
	}
	for ri := range b.Rows {
		row := &b.Rows[ri]
		for si := range row.Stacks {
			stack := &row.Stacks[si]
			for ci := range stack.Columns {
				out = append(out, ColumnRef{FlatIndex: len(out), RowIdx: ri, StackIdx: si, ColIdx: ci, Column: &stack.Columns[ci]})
			}
		}
	}
	return out
}

// NormalizeDefaultRow rewrites a legacy board into the hierarchical shape
// with a single row and stack both titled "Default", making the
// legacy/hierarchical equivalence explicit. It is used only where the CRDT
// bridge needs a uniform row/stack/column tree to replicate; the on-disk
// shape is otherwise preserved verbatim by the parser.
func (b *Board) NormalizeDefaultRow() []Row {
	if b.Shape == ShapeHierarchical {
		return b.Rows
	}
	cols := make([]Column, len(b.Columns))
	copy(cols, b.Columns)
	return []Row{{
		ID:    "default-row",
		Title: "Default",
		Stacks: []Stack{{
			ID:      "default-stack",
			Title:   "Default",
			Columns: cols,
		}},
	}}
}
