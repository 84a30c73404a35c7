// Package diffmerge implements card-level diffing keyed by kid and the
// three-way merge used at the file/CRDT boundary.
package diffmerge

import "github.com/lexera/boardcore/internal/board"

// CardSnapshot is the per-kid projection diff/merge operate on.
type CardSnapshot struct {
	Column   string
	Content  string
	Checked  bool
	Position int
}

// Snapshot builds a map kid -> CardSnapshot, silently dropping cards
// without a kid (they cannot participate in diff/merge).
func Snapshot(b *board.Board) map[string]CardSnapshot {
	out := make(map[string]CardSnapshot)
	for _, ref := range b.AllColumns() {
		for pos, c := range ref.Column.Cards {
			if c.Kid == "" {
				continue
			}
			out[c.Kid] = CardSnapshot{
				Column:   ref.Column.Title,
				Content:  c.Content,
				Checked:  c.Checked,
				Position: pos,
			}
		}
	}
	return out
}

// ChangeKind classifies a single-card diff entry.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Modified
	Moved
)

// Change describes what happened to one kid between two snapshots. Diff
// reports any change to a kid present in both snapshots with Kind Modified
// and sets the Modified and/or Moved booleans; it never emits Kind Moved,
// so callers inspect the booleans to tell a move from a field edit.
type Change struct {
	Kid      string
	Kind     ChangeKind
	Modified bool
	Moved    bool
	Old      CardSnapshot
	New      CardSnapshot
}

// Diff yields the sequence of card changes between old and new snapshots.
func Diff(old, new map[string]CardSnapshot) []Change {
	var out []Change
	for k, n := range new {
		o, existed := old[k]
		if !existed {
			out = append(out, Change{Kid: k, Kind: Added, New: n})
			continue
		}
		modified := o.Content != n.Content || o.Checked != n.Checked
		moved := o.Column != n.Column
		if modified || moved {
			out = append(out, Change{Kid: k, Kind: Modified, Modified: modified, Moved: moved, Old: o, New: n})
		}
	}
	for k, o := range old {
		if _, stillExists := new[k]; !stillExists {
			out = append(out, Change{Kid: k, Kind: Removed, Old: o})
		}
	}
	return out
}

// DiffBoards is a convenience wrapper taking boards directly.
func DiffBoards(oldBoard, newBoard *board.Board) []Change {
	return Diff(Snapshot(oldBoard), Snapshot(newBoard))
}
