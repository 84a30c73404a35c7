package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexera/boardcore/internal/searchquery"
)

// hiddenHashTags are the tag markers the kanban-plugin convention uses to
// pull a card out of normal view. "parked" is deliberately not included:
// it marks a card as on hold, not hidden.
var hiddenHashTags = map[string]bool{
	"deleted":  true,
	"archived": true,
}

// SearchOptions controls a search/search_with_options call.
type SearchOptions struct {
	CaseSensitive bool
	Now           time.Time
}

// SearchHit is one matched card, carrying enough context to locate and
// render it without a second lookup.
type SearchHit struct {
	BoardID     string
	BoardTitle  string
	ColumnTitle string
	FlatIndex   int
	Kid         string
	Content     string
	Checked     bool
	Meta        searchquery.CardMetadata
}

// Search runs query against every tracked board with default options.
func (e *Engine) Search(ctx context.Context, query string) ([]SearchHit, error) {
	return e.SearchWithOptions(ctx, query, SearchOptions{})
}

// SearchWithOptions fans out across every tracked board, skipping hidden
// cards, computing per-card metadata once, and filtering through the
// compiled query. The search index is consulted as an optional candidate
// prefilter; a nil index or a term the index can't narrow falls back to a
// full scan over every board.
func (e *Engine) SearchWithOptions(ctx context.Context, query string, opts SearchOptions) ([]SearchHit, error) {
	now := opts.Now
	if now.IsZero() {
		now = e.now()
	}

	q, err := searchquery.CompileCaseSensitive(query, now, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}

	candidates := e.candidateBoardIDs(ctx, query)

	e.mu.RLock()
	var states []*boardState
	if candidates == nil {
		for _, st := range e.boards {
			states = append(states, st)
		}
	} else {
		want := make(map[string]bool, len(candidates))
		for _, id := range candidates {
			want[id] = true
		}
		for id, st := range e.boards {
			if want[id] {
				states = append(states, st)
			}
		}
	}
	e.mu.RUnlock()

	// Each board is scanned independently, so the fan-out across boards
	// runs concurrently; results are collected under a mutex and sorted
	// once every board has finished.
	var mu sync.Mutex
	var hits []SearchHit
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range states {
		st := st
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			local := scanBoard(st, q, now)
			if len(local) == 0 {
				return nil
			}
			mu.Lock()
			hits = append(hits, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if ta, tb := strings.ToLower(a.BoardTitle), strings.ToLower(b.BoardTitle); ta != tb {
			return ta < tb
		}
		if a.BoardID != b.BoardID {
			return a.BoardID < b.BoardID
		}
		if a.FlatIndex != b.FlatIndex {
			return a.FlatIndex < b.FlatIndex
		}
		return strings.ToLower(a.Content) < strings.ToLower(b.Content)
	})

	overdue := 0
	for _, h := range hits {
		if h.Meta.Overdue {
			overdue++
		}
	}
	log.Info("search completed", "query", query, "hits", len(hits), "overdue", overdue, "as_of", searchquery.FormatDue(now))
	return hits, nil
}

// scanBoard evaluates every card of one board against q, computing each
// card's metadata once. Run concurrently per board by SearchWithOptions.
func scanBoard(st *boardState, q *searchquery.Query, now time.Time) []SearchHit {
	b := st.Board
	if b == nil {
		return nil
	}
	var hits []SearchHit
	for _, ref := range b.AllColumns() {
		for _, c := range ref.Column.Cards {
			meta := searchquery.DeriveMetadata(c.Content, now)
			if cardHidden(meta) {
				continue
			}
			view := searchquery.CardView{
				Content:     c.Content,
				Checked:     c.Checked,
				BoardTitle:  b.Title,
				ColumnTitle: ref.Column.Title,
				Meta:        meta,
			}
			if !q.Match(view) {
				continue
			}
			hits = append(hits, SearchHit{
				BoardID:     st.ID,
				BoardTitle:  b.Title,
				ColumnTitle: ref.Column.Title,
				FlatIndex:   ref.FlatIndex,
				Kid:         c.Kid,
				Content:     c.Content,
				Checked:     c.Checked,
				Meta:        meta,
			})
		}
	}
	return hits
}

// candidateBoardIDs asks the search index to narrow the board set for any
// prefilterable term (a plain text token or a #tag token). Returns nil
// ("scan everything") if the index is absent or no term narrows usefully.
func (e *Engine) candidateBoardIDs(ctx context.Context, query string) []string {
	if e.index == nil {
		return nil
	}
	var narrowed map[string]bool
	first := true
	narrow := func(ids []string) {
		if ids == nil {
			return
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		if first {
			narrowed = set
			first = false
			return
		}
		for id := range narrowed {
			if !set[id] {
				delete(narrowed, id)
			}
		}
	}

	for _, tok := range strings.Fields(query) {
		if strings.HasPrefix(tok, "-") {
			// A negated term disqualifies cards that mention it; the index
			// only records positive term -> board presence, so it cannot
			// narrow on a negation without inverting the match. Skip it.
			continue
		}
		switch {
		case strings.HasPrefix(tok, "#"):
			narrow(e.index.CandidateBoardIDsForTag(ctx, tok[1:]))
		case strings.HasPrefix(tok, "tag:"):
			narrow(e.index.CandidateBoardIDsForTag(ctx, tok[4:]))
		case isPlainTextToken(tok):
			narrow(e.index.CandidateBoardIDs(ctx, tok))
		}
	}
	if first {
		return nil
	}
	out := make([]string, 0, len(narrowed))
	for id := range narrowed {
		out = append(out, id)
	}
	return out
}

func isPlainTextToken(tok string) bool {
	if tok == "" {
		return false
	}
	switch {
	case strings.HasPrefix(tok, "@"),
		strings.HasPrefix(tok, "date:"),
		strings.HasPrefix(tok, "temporal:"),
		strings.HasPrefix(tok, "board:"),
		strings.HasPrefix(tok, "col:"),
		strings.HasPrefix(tok, "column:"),
		strings.HasPrefix(tok, "due:"),
		strings.HasPrefix(tok, "re:"),
		strings.HasPrefix(tok, "/"),
		tok == "is:open", tok == "is:done":
		return false
	}
	return true
}

func cardHidden(meta searchquery.CardMetadata) bool {
	for _, tag := range meta.HashTags {
		if hiddenHashTags[tag] {
			return true
		}
	}
	return false
}
