// Package searchquery compiles the board search query language into a
// reusable matcher evaluated once per candidate card.
package searchquery

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CardView is the minimal per-card view the compiled query matches against.
// Storage builds one of these per candidate card, deriving Meta once with
// DeriveMetadata rather than recomputing it per term.
type CardView struct {
	Content     string
	Checked     bool
	BoardTitle  string
	ColumnTitle string
	Meta        CardMetadata
}

type termKind int

const (
	termText termKind = iota
	termTag
	termTemporal
	termBoard
	termColumn
	termIsOpen
	termIsDone
	termDue
	termRegex
)

type dueClass int

const (
	dueNone dueClass = iota
	dueAny
	dueOverdue
	dueToday
	dueWeek
	dueFuture
	dueExact
)

type term struct {
	kind     termKind
	negate   bool
	text     string // folded comparison text for termText/termBoard/termColumn/termTag
	dueClass dueClass
	dueDate  time.Time // valid when dueClass == dueExact
	re       *regexp.Regexp
}

// Query is a compiled search expression.
type Query struct {
	terms         []term
	now           time.Time
	caseSensitive bool
}

// Compile parses and compiles a raw query string against the given "now"
// reference time for temporal term resolution, case-insensitive. An invalid
// regex term compiles successfully but the resulting Query matches nothing,
// per spec.
func Compile(raw string, now time.Time) (*Query, error) {
	return CompileCaseSensitive(raw, now, false)
}

// CompileCaseSensitive is Compile with control over whether text/board/
// column substring terms fold case (and accents) or compare verbatim.
func CompileCaseSensitive(raw string, now time.Time, caseSensitive bool) (*Query, error) {
	tokens, err := tokenize(raw)
	if err != nil {
		return nil, err
	}
	q := &Query{now: now, caseSensitive: caseSensitive}
	for _, tok := range tokens {
		t, err := compileToken(tok, now, caseSensitive)
		if err != nil {
			// invalid regex: force the whole query to match nothing,
			// rather than silently dropping the offending term.
			q.terms = []term{{kind: termRegex, re: nil}}
			return q, nil
		}
		q.terms = append(q.terms, t)
	}
	return q, nil
}

func fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return FoldText(s)
}

// tokenize whitespace-splits raw, grouping double-quoted spans and
// honoring backslash escapes inside and outside quotes.
func tokenize(raw string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			cur.WriteRune(runes[i+1])
			i++
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote in query")
	}
	flush()
	return tokens, nil
}

func compileToken(tok string, now time.Time, caseSensitive bool) (term, error) {
	negate := false
	if strings.HasPrefix(tok, "-") && len(tok) > 1 {
		negate = true
		tok = tok[1:]
	}

	switch {
	case strings.HasPrefix(tok, "#"):
		return term{kind: termTag, negate: negate, text: FoldText(tok[1:])}, nil
	case strings.HasPrefix(tok, "tag:"):
		return term{kind: termTag, negate: negate, text: FoldText(tok[4:])}, nil
	case strings.HasPrefix(tok, "@"):
		return term{kind: termTemporal, negate: negate, text: tok[1:]}, nil
	case strings.HasPrefix(tok, "date:"):
		return term{kind: termTemporal, negate: negate, text: tok[5:]}, nil
	case strings.HasPrefix(tok, "temporal:"):
		return term{kind: termTemporal, negate: negate, text: tok[9:]}, nil
	case strings.HasPrefix(tok, "board:"):
		return term{kind: termBoard, negate: negate, text: fold(tok[6:], caseSensitive)}, nil
	case strings.HasPrefix(tok, "col:"):
		return term{kind: termColumn, negate: negate, text: fold(tok[4:], caseSensitive)}, nil
	case strings.HasPrefix(tok, "column:"):
		return term{kind: termColumn, negate: negate, text: fold(tok[7:], caseSensitive)}, nil
	case tok == "is:open":
		return term{kind: termIsOpen, negate: negate}, nil
	case tok == "is:done":
		return term{kind: termIsDone, negate: negate}, nil
	case strings.HasPrefix(tok, "due:"):
		return compileDue(tok[4:], negate, now)
	case strings.HasPrefix(tok, "re:"):
		re, err := regexp.Compile(tok[3:])
		if err != nil {
			return term{}, err
		}
		return term{kind: termRegex, negate: negate, re: re}, nil
	case strings.HasPrefix(tok, "/") && strings.HasSuffix(tok, "/") && len(tok) >= 2:
		re, err := regexp.Compile(tok[1 : len(tok)-1])
		if err != nil {
			return term{}, err
		}
		return term{kind: termRegex, negate: negate, re: re}, nil
	default:
		return term{kind: termText, negate: negate, text: fold(tok, caseSensitive)}, nil
	}
}

func compileDue(val string, negate bool, now time.Time) (term, error) {
	switch val {
	case "any":
		return term{kind: termDue, negate: negate, dueClass: dueAny}, nil
	case "overdue":
		return term{kind: termDue, negate: negate, dueClass: dueOverdue}, nil
	case "today":
		return term{kind: termDue, negate: negate, dueClass: dueToday}, nil
	case "week":
		return term{kind: termDue, negate: negate, dueClass: dueWeek}, nil
	case "future":
		return term{kind: termDue, negate: negate, dueClass: dueFuture}, nil
	default:
		d, ok := ParseTemporalLiteral(val, now)
		if !ok {
			return term{}, fmt.Errorf("invalid due literal %q", val)
		}
		return term{kind: termDue, negate: negate, dueClass: dueExact, dueDate: d}, nil
	}
}

// Match reports whether card satisfies every positive term and no negative
// term; a query whose compilation detected an invalid regex matches
// nothing.
func (q *Query) Match(card CardView) bool {
	for _, t := range q.terms {
		if t.kind == termRegex && t.re == nil {
			return false
		}
		if t.matches(card, q.now, q.caseSensitive) == t.negate {
			return false
		}
	}
	return true
}

func (t term) matches(card CardView, now time.Time, caseSensitive bool) bool {
	switch t.kind {
	case termText:
		return strings.Contains(fold(card.Content, caseSensitive), t.text)
	case termTag:
		for _, h := range card.Meta.HashTags {
			if h == t.text {
				return true
			}
		}
		return false
	case termTemporal:
		want, ok := ParseTemporalLiteral(t.text, now)
		if !ok {
			return false
		}
		for _, tag := range card.Meta.TemporalTags {
			if got, ok := ParseTemporalLiteral(tag, now); ok && got.Equal(want) {
				return true
			}
		}
		return false
	case termBoard:
		return strings.Contains(fold(card.BoardTitle, caseSensitive), t.text)
	case termColumn:
		return strings.Contains(fold(card.ColumnTitle, caseSensitive), t.text)
	case termIsOpen:
		return !card.Checked
	case termIsDone:
		return card.Checked
	case termDue:
		return matchDue(t, card.Meta, now)
	case termRegex:
		return t.re != nil && t.re.MatchString(card.Content)
	}
	return false
}

func matchDue(t term, meta CardMetadata, now time.Time) bool {
	if t.dueClass == dueAny {
		return meta.DueDate != nil
	}
	if meta.DueDate == nil {
		return false
	}
	due := *meta.DueDate
	today := dateOnly(now)
	switch t.dueClass {
	case dueOverdue:
		return due.Before(today)
	case dueToday:
		return due.Equal(today)
	case dueWeek:
		return !due.Before(today) && due.Before(today.AddDate(0, 0, 7))
	case dueFuture:
		return due.After(today)
	case dueExact:
		return due.Equal(t.dueDate)
	}
	return false
}
