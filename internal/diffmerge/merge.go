package diffmerge

import "github.com/lexera/boardcore/internal/board"

// ConflictKind names which field of a card disagreed between theirs and
// ours in a way the merge could not resolve automatically.
type ConflictKind int

const (
	ConflictContent ConflictKind = iota
	ConflictChecked
)

// Conflict records one field-level disagreement the merge resolved by
// preferring ours.
type Conflict struct {
	Kid    string
	Kind   ConflictKind
	Base   string
	Theirs string
	Ours   string
}

// Result is the outcome of a three-way merge: the merged board plus any
// per-card conflicts the merge resolved by preferring the user's side.
type Result struct {
	Board      *board.Board
	Conflicts  []Conflict
	AutoMerged int
}

type mergedCard struct {
	kid     string
	column  string
	content string
	checked bool
}

// ThreeWayMerge reconciles theirs (e.g. external/current CRDT state) and
// ours (the user's candidate) against base, producing a merged board and
// the conflicts it resolved by preferring ours.
func ThreeWayMerge(base, theirs, ours *board.Board) Result {
	baseSnap := Snapshot(base)
	theirsSnap := Snapshot(theirs)
	oursSnap := Snapshot(ours)

	allKids := make(map[string]bool)
	for k := range baseSnap {
		allKids[k] = true
	}
	for k := range theirsSnap {
		allKids[k] = true
	}
	for k := range oursSnap {
		allKids[k] = true
	}

	var res Result
	var merged []mergedCard

	for k := range allKids {
		b, hasB := baseSnap[k]
		t, hasT := theirsSnap[k]
		o, hasO := oursSnap[k]

		switch {
		case hasB && hasT && hasO:
			mc := mergedCard{kid: k}
			mc.content, mc.checked = mergeFields(k, b, t, o, &res)
			if b.Column != t.Column {
				mc.column = t.Column
			} else {
				mc.column = o.Column
			}
			merged = append(merged, mc)

		case hasB && hasT && !hasO:
			// deleted by ours: omit

		case hasB && !hasT && hasO:
			// externally deleted: keep ours (conservative)
			merged = append(merged, mergedCard{kid: k, column: o.Column, content: o.Content, checked: o.Checked})

		case !hasB && hasT && !hasO:
			merged = append(merged, mergedCard{kid: k, column: t.Column, content: t.Content, checked: t.Checked})

		case !hasB && !hasT && hasO:
			merged = append(merged, mergedCard{kid: k, column: o.Column, content: o.Content, checked: o.Checked})

		case !hasB && hasT && hasO:
			if t.Content == o.Content && t.Checked == o.Checked {
				merged = append(merged, mergedCard{kid: k, column: t.Column, content: t.Content, checked: t.Checked})
			} else {
				merged = append(merged, mergedCard{kid: k, column: t.Column, content: t.Content, checked: t.Checked})
				res.AutoMerged++
			}

		case hasB && !hasT && !hasO:
			// deleted by both: omit
		}
	}

	res.Board = buildMergedBoard(theirs, ours, merged)
	return res
}

// mergeFields resolves content and checked independently: a conflict is
// recorded (and ours wins) only when both sides changed the field and
// disagree; otherwise whichever side changed wins, defaulting to ours.
func mergeFields(k string, b, t, o CardSnapshot, res *Result) (content string, checked bool) {
	tChanged := t.Content != b.Content
	oChanged := o.Content != b.Content
	switch {
	case tChanged && oChanged && t.Content != o.Content:
		res.Conflicts = append(res.Conflicts, Conflict{Kid: k, Kind: ConflictContent, Base: b.Content, Theirs: t.Content, Ours: o.Content})
		content = o.Content
	case tChanged && oChanged:
		res.AutoMerged++
		content = o.Content
	case tChanged:
		content = t.Content
	default:
		content = o.Content
	}

	tChecked := t.Checked != b.Checked
	oChecked := o.Checked != b.Checked
	switch {
	case tChecked && oChecked && t.Checked != o.Checked:
		base := "false"
		if b.Checked {
			base = "true"
		}
		res.Conflicts = append(res.Conflicts, Conflict{Kid: k, Kind: ConflictChecked, Base: base, Theirs: boolStr(t.Checked), Ours: boolStr(o.Checked)})
		checked = o.Checked
	case tChecked && oChecked:
		res.AutoMerged++
		checked = o.Checked
	case tChecked:
		checked = t.Checked
	default:
		checked = o.Checked
	}
	return
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// buildMergedBoard assembles the merged board's columns from theirs' order
// (appending any column present only in ours in encounter order), files
// merged cards into the column matching their target title (falling back
// to the first column when absent), and inherits all non-card metadata
// from ours.
func buildMergedBoard(theirs, ours *board.Board, merged []mergedCard) *board.Board {
	out := &board.Board{
		Valid:    ours.Valid,
		Title:    ours.Title,
		Shape:    ours.Shape,
		Header:   ours.Header,
		Footer:   ours.Footer,
		Settings: ours.Settings,
	}

	var order []string
	seen := make(map[string]bool)
	colByTitle := make(map[string]*board.Column)

	register := func(src *board.Board) {
		for _, ref := range src.AllColumns() {
			title := ref.Column.Title
			if !seen[title] {
				seen[title] = true
				order = append(order, title)
				c := board.Column{ID: ref.Column.ID, Title: title, Include: ref.Column.Include}
				colByTitle[title] = &c
			}
		}
	}
	register(theirs)
	register(ours)

	for _, mc := range merged {
		target := colByTitle[mc.column]
		if target == nil && len(order) > 0 {
			target = colByTitle[order[0]]
		}
		if target == nil {
			continue
		}
		target.Cards = append(target.Cards, board.Card{Kid: mc.kid, Content: mc.content, Checked: mc.checked})
	}

	flat := make([]board.Column, 0, len(order))
	for _, title := range order {
		flat = append(flat, *colByTitle[title])
	}

	if ours.Shape != board.ShapeHierarchical {
		out.Columns = flat
		return out
	}
	out.Rows = placeIntoHierarchy(ours.Rows, flat)
	return out
}

// placeIntoHierarchy maps a flat, title-ordered column list onto ours'
// row/stack structure: columns whose title already exists somewhere in
// ours keep their position and receive the merged cards; any column only
// theirs contributed is appended to the last stack of the last row
// (creating a Default row/stack first if ours had none), preserving the
// row-hierarchy invariant the merge inherits from ours.
func placeIntoHierarchy(oursRows []board.Row, flat []board.Column) []board.Row {
	byTitle := make(map[string]board.Column, len(flat))
	remaining := make(map[string]bool, len(flat))
	for _, c := range flat {
		byTitle[c.Title] = c
		remaining[c.Title] = true
	}

	rows := make([]board.Row, len(oursRows))
	copy(rows, oursRows)
	for ri := range rows {
		rows[ri].Stacks = append([]board.Stack(nil), rows[ri].Stacks...)
		for si := range rows[ri].Stacks {
			stack := &rows[ri].Stacks[si]
			stack.Columns = append([]board.Column(nil), stack.Columns...)
			for ci := range stack.Columns {
				if merged, ok := byTitle[stack.Columns[ci].Title]; ok {
					stack.Columns[ci].Cards = merged.Cards
					delete(remaining, stack.Columns[ci].Title)
				}
			}
		}
	}

	if len(remaining) == 0 {
		return rows
	}
	if len(rows) == 0 {
		rows = append(rows, board.Row{ID: "default-row", Title: "Default"})
	}
	lastRow := &rows[len(rows)-1]
	if len(lastRow.Stacks) == 0 {
		lastRow.Stacks = append(lastRow.Stacks, board.Stack{ID: lastRow.ID + "-stack-0", Title: "Default"})
	}
	lastStack := &lastRow.Stacks[len(lastRow.Stacks)-1]
	for _, c := range flat {
		if remaining[c.Title] {
			lastStack.Columns = append(lastStack.Columns, c)
		}
	}
	return rows
}
