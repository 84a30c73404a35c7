package crdt

import (
	"fmt"
	"sort"
	"time"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/diffmerge"
	"github.com/lexera/boardcore/internal/kid"
)

// Bridge maps a board.Board onto a replicated Doc. YAML header, footer,
// and board settings are not stored in the Doc; they ride alongside here
// and are re-attached on every ToBoard call, per spec: metadata is
// last-writer-wins on whoever calls FromBoard/Rebuild most recently, never
// CRDT-merged.
type Bridge struct {
	Doc      *Doc
	Header   string
	Footer   string
	Settings board.Settings
}

// NewBridge creates an empty bridge owned by the given peer (0 means the
// default peer).
func NewBridge(peer uint64) *Bridge {
	return &Bridge{Doc: NewDoc(peer)}
}

func formatOf(b *board.Board) string {
	if b.Shape == board.ShapeHierarchical {
		return "new"
	}
	return "legacy"
}

// FromBoard initializes the bridge's document from scratch and populates
// every row/stack/column/card entity, stripping kids from card content
// before insertion (board.Card.Content is already marker-free by the time
// it reaches here; this is the seam where that invariant is enforced).
func FromBoard(b *board.Board, peer uint64) *Bridge {
	br := NewBridge(peer)
	br.Header = b.Header
	br.Footer = b.Footer
	br.Settings = b.Settings
	br.Doc.setTitle(b.Title)
	br.Doc.setFormat(formatOf(b))

	d := br.Doc
	d.mu.Lock()
	defer d.mu.Unlock()

	if b.Shape == board.ShapeHierarchical {
		for _, row := range b.Rows {
			rowE := d.insert(rootID, KindRow)
			rowE.Title = row.Title
			for _, stack := range row.Stacks {
				stackE := d.insert(rowE.ID, KindStack)
				stackE.Title = stack.Title
				for _, col := range stack.Columns {
					colE := d.insert(stackE.ID, KindColumn)
					colE.Title = col.Title
					for _, c := range col.Cards {
						cardE := d.insert(colE.ID, KindCard)
						cardE.Title = ""
						cardE.Content = kid.Strip(c.Content)
						cardE.Checked = c.Checked
						cardE.Kid = c.Kid
					}
				}
			}
		}
		return br
	}

	for _, col := range b.Columns {
		colE := d.insert(rootID, KindColumn)
		colE.Title = col.Title
		for _, c := range col.Cards {
			cardE := d.insert(colE.ID, KindCard)
			cardE.Content = kid.Strip(c.Content)
			cardE.Checked = c.Checked
			cardE.Kid = c.Kid
		}
	}
	return br
}

func (d *Doc) setTitle(t string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = t
	d.titleID = d.nextID()
}

func (d *Doc) setFormat(f string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.format = f
	d.formatID = d.nextID()
}

// ToBoard reconstructs a board.Board from the document, synthesizing
// transient card ids as crdt-{hex-nanos}, and re-attaches the header,
// footer, and settings carried alongside the document.
func (br *Bridge) ToBoard() *board.Board {
	d := br.Doc
	d.mu.Lock()
	defer d.mu.Unlock()

	out := &board.Board{
		Valid:    true,
		Title:    d.title,
		Header:   br.Header,
		Footer:   br.Footer,
		Settings: br.Settings,
	}

	if d.format == "new" {
		out.Shape = board.ShapeHierarchical
		for _, rowE := range d.children(rootID, KindRow) {
			row := board.Row{ID: idStr(rowE.ID), Title: rowE.Title}
			for _, stackE := range d.children(rowE.ID, KindStack) {
				stack := board.Stack{ID: idStr(stackE.ID), Title: stackE.Title}
				for _, colE := range d.children(stackE.ID, KindColumn) {
					stack.Columns = append(stack.Columns, d.columnFrom(colE))
				}
				row.Stacks = append(row.Stacks, stack)
			}
			out.Rows = append(out.Rows, row)
		}
		return out
	}

	out.Shape = board.ShapeLegacy
	for _, colE := range d.children(rootID, KindColumn) {
		out.Columns = append(out.Columns, d.columnFrom(colE))
	}
	return out
}

func (d *Doc) columnFrom(colE *Entity) board.Column {
	col := board.Column{ID: idStr(colE.ID), Title: colE.Title}
	for _, cardE := range d.children(colE.ID, KindCard) {
		col.Cards = append(col.Cards, board.Card{
			ID:      fmt.Sprintf("crdt-%x", time.Now().UnixNano()),
			Kid:     cardE.Kid,
			Content: cardE.Content,
			Checked: cardE.Checked,
		})
	}
	return col
}

func idStr(id ID) string {
	return fmt.Sprintf("%d-%d", id.Counter, id.Peer)
}

// columnKey identifies a column by its structural path so that cards with
// the same column title in different stacks aren't conflated.
func columnKey(rowTitle, stackTitle, colTitle string) string {
	return rowTitle + "\x1f" + stackTitle + "\x1f" + colTitle
}

// ApplyBoard computes a card-level diff between current (the document's
// own last-known board, typically) and incoming (the desired target),
// then applies the minimal corresponding operations: insert (Added),
// delete-then-insert across columns (Moved), overwrite fields (Modified),
// delete (Removed). A structural-sync pass then reconciles the row/
// stack/column tree itself. Reports whether the card-level diff was
// non-empty; changes made only by the structural-sync pass are not reported.
func (br *Bridge) ApplyBoard(incoming, current *board.Board) bool {
	d := br.Doc
	d.setFormat(formatOf(incoming))

	colKeyOf := func(b *board.Board) map[string]string { // kid -> columnKey
		m := make(map[string]string)
		if b.Shape == board.ShapeHierarchical {
			for _, row := range b.Rows {
				for _, stack := range row.Stacks {
					for _, col := range stack.Columns {
						for _, c := range col.Cards {
							if c.Kid != "" {
								m[c.Kid] = columnKey(row.Title, stack.Title, col.Title)
							}
						}
					}
				}
			}
			return m
		}
		for _, col := range b.Columns {
			for _, c := range col.Cards {
				if c.Kid != "" {
					m[c.Kid] = columnKey("", "", col.Title)
				}
			}
		}
		return m
	}
	incomingKeyOf := colKeyOf(incoming)

	keyToEntity := br.structuralSync(incoming)

	changes := diffmerge.DiffBoards(current, incoming)
	if len(changes) == 0 {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cardEntityByKid := make(map[string]*Entity)
	for _, e := range d.entities {
		if e.Kind == KindCard && e.Kid != "" && !e.Tombstone {
			cardEntityByKid[e.Kid] = e
		}
	}

	for _, ch := range changes {
		switch ch.Kind {
		case diffmerge.Removed:
			if e, ok := cardEntityByKid[ch.Kid]; ok {
				e.Tombstone = true
				d.touch(e)
			}
		case diffmerge.Added:
			key := incomingKeyOf[ch.Kid]
			parent, ok := keyToEntity[key]
			if !ok {
				continue
			}
			cardE := d.insert(parent, KindCard)
			cardE.Kid = ch.Kid
			cardE.Content = ch.New.Content
			cardE.Checked = ch.New.Checked
		case diffmerge.Modified:
			e, ok := cardEntityByKid[ch.Kid]
			if !ok {
				continue
			}
			if ch.Moved {
				e.Tombstone = true
				d.touch(e)
				key := incomingKeyOf[ch.Kid]
				parent, ok := keyToEntity[key]
				if !ok {
					continue
				}
				newE := d.insert(parent, KindCard)
				newE.Kid = ch.Kid
				newE.Content = ch.New.Content
				newE.Checked = ch.New.Checked
				continue
			}
			if ch.Modified {
				e.Content = ch.New.Content
				e.Checked = ch.New.Checked
				d.touch(e)
			}
		}
	}
	return true
}

// structuralSync walks incoming's row/stack/column hierarchy and adds
// missing nodes / removes trailing extras so the document's structure
// matches incoming, returning a columnKey -> column entity ID map for the
// card-level pass to place new cards into.
func (br *Bridge) structuralSync(incoming *board.Board) map[string]ID {
	d := br.Doc
	result := make(map[string]ID)

	d.mu.Lock()
	defer d.mu.Unlock()

	syncChildren := func(parent ID, kind Kind, wantTitles []string) map[string]ID {
		existing := d.children(parent, kind)
		byTitle := make(map[string]*Entity, len(existing))
		for _, e := range existing {
			if _, dup := byTitle[e.Title]; !dup {
				byTitle[e.Title] = e
			}
		}
		want := make(map[string]bool, len(wantTitles))
		for _, t := range wantTitles {
			want[t] = true
		}
		// remove trailing extras: entities not present in incoming
		for _, e := range existing {
			if !want[e.Title] {
				e.Tombstone = true
				d.touch(e)
			}
		}
		out := make(map[string]ID, len(wantTitles))
		for _, t := range wantTitles {
			if e, ok := byTitle[t]; ok {
				out[t] = e.ID
				continue
			}
			e := d.insert(parent, kind)
			e.Title = t
			out[t] = e.ID
		}
		return out
	}

	if incoming.Shape == board.ShapeHierarchical {
		var rowTitles []string
		for _, row := range incoming.Rows {
			rowTitles = append(rowTitles, row.Title)
		}
		rowIDs := syncChildren(rootID, KindRow, rowTitles)
		for _, row := range incoming.Rows {
			rowID := rowIDs[row.Title]
			var stackTitles []string
			for _, stack := range row.Stacks {
				stackTitles = append(stackTitles, stack.Title)
			}
			stackIDs := syncChildren(rowID, KindStack, stackTitles)
			for _, stack := range row.Stacks {
				stackID := stackIDs[stack.Title]
				var colTitles []string
				for _, col := range stack.Columns {
					colTitles = append(colTitles, col.Title)
				}
				colIDs := syncChildren(stackID, KindColumn, colTitles)
				for _, col := range stack.Columns {
					result[columnKey(row.Title, stack.Title, col.Title)] = colIDs[col.Title]
				}
			}
		}
		return result
	}

	var colTitles []string
	for _, col := range incoming.Columns {
		colTitles = append(colTitles, col.Title)
	}
	colIDs := syncChildren(rootID, KindColumn, colTitles)
	for _, col := range incoming.Columns {
		result[columnKey("", "", col.Title)] = colIDs[col.Title]
	}
	return result
}

// StructuralMismatch reports whether the document's current structure
// disagrees with target: a different shape, a different number of rows, a
// row or stack whose title differs at the same position, a different number
// of stacks in a row, or a different column count or set of column titles
// (column titles are compared board-wide, not per stack) — the precondition the storage engine uses to decide a full Rebuild is
// required, tightening spec's "heuristic" rebuild trigger into an
// explicit invariant check.
func (br *Bridge) StructuralMismatch(target *board.Board) bool {
	got := br.ToBoard()
	gotCols := got.AllColumns()
	wantCols := target.AllColumns()
	if len(gotCols) != len(wantCols) {
		return true
	}
	gotTitles := make([]string, len(gotCols))
	for i, c := range gotCols {
		gotTitles[i] = c.Column.Title
	}
	wantTitles := make([]string, len(wantCols))
	for i, c := range wantCols {
		wantTitles[i] = c.Column.Title
	}
	sort.Strings(gotTitles)
	sort.Strings(wantTitles)
	for i := range gotTitles {
		if gotTitles[i] != wantTitles[i] {
			return true
		}
	}
	if got.Shape != target.Shape || len(got.Rows) != len(target.Rows) {
		return true
	}
	for ri, row := range target.Rows {
		if got.Rows[ri].Title != row.Title || len(got.Rows[ri].Stacks) != len(row.Stacks) {
			return true
		}
		for si, stack := range row.Stacks {
			if got.Rows[ri].Stacks[si].Title != stack.Title {
				return true
			}
		}
	}
	return false
}

// Rebuild discards the document's history and reinitializes it from
// target, guaranteeing structural truth. The peer identity is preserved.
func (br *Bridge) Rebuild(target *board.Board) {
	peer := br.Doc.peer
	fresh := FromBoard(target, peer)
	br.Doc = fresh.Doc
	br.Header = target.Header
	br.Footer = target.Footer
	br.Settings = target.Settings
}

// sortedEntities is a small helper kept here (rather than doc.go) because
// only export/import care about a stable iteration order.
func (d *Doc) sortedEntities() []*Entity {
	out := make([]*Entity, 0, len(d.entities))
	for _, e := range d.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].ID, out[j].ID) })
	return out
}
