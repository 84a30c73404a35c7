package parser

import (
	"strings"
	"testing"

	"github.com/lexera/boardcore/internal/board"
)

const legacyDoc = `---
kanban-plugin: board
title: My Board
---

## To Do

- [ ] buy milk
- [x] walk the dog

## Done

- [ ] already finished

%%kanban:settings
`

func TestParseLegacyBoardStructure(t *testing.T) {
	b, err := Parse(legacyDoc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !b.Valid {
		t.Fatal("expected a kanban-plugin header to mark the board valid")
	}
	if b.Title != "My Board" {
		t.Fatalf("Title = %q, want %q", b.Title, "My Board")
	}
	if b.Shape != 0 {
		t.Fatalf("expected legacy shape, got %v", b.Shape)
	}
	if len(b.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d: %+v", len(b.Columns), b.Columns)
	}
	if b.Columns[0].Title != "To Do" || len(b.Columns[0].Cards) != 2 {
		t.Fatalf("unexpected first column: %+v", b.Columns[0])
	}
	if b.Columns[0].Cards[0].Content != "buy milk" || b.Columns[0].Cards[0].Checked {
		t.Fatalf("unexpected first card: %+v", b.Columns[0].Cards[0])
	}
	if !b.Columns[0].Cards[1].Checked {
		t.Fatal("expected the second card to be checked")
	}
	if !strings.HasPrefix(b.Footer, "%%") {
		t.Fatalf("expected footer to be captured, got %q", b.Footer)
	}
}

func TestParseAssignsGeneratedKidsFromMarkerOrFresh(t *testing.T) {
	doc := "---\nkanban-plugin: board\n---\n\n## To Do\n\n- [ ] <!-- kid:deadbeef -->buy milk\n- [ ] plain card\n"
	b, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cards := b.Columns[0].Cards
	if cards[0].Kid != "deadbeef" {
		t.Fatalf("expected explicit kid marker to be resolved, got %q", cards[0].Kid)
	}
	if cards[0].Content != "buy milk" {
		t.Fatalf("expected the kid marker stripped from content, got %q", cards[0].Content)
	}
	if cards[1].Kid == "" {
		t.Fatal("expected a fresh kid to be generated for a card without a marker")
	}
}

func TestParseMultilineCardContinuation(t *testing.T) {
	doc := "---\nkanban-plugin: board\n---\n\n## To Do\n\n- [ ] first line\n  second line\n  third line\n"
	b, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "first line\nsecond line\nthird line"
	if b.Columns[0].Cards[0].Content != want {
		t.Fatalf("Content = %q, want %q", b.Columns[0].Cards[0].Content, want)
	}
}

func TestParseContinuationStopsAtNextStructuralElement(t *testing.T) {
	doc := "---\nkanban-plugin: board\n---\n\n## To Do\n\n- [ ] only card\n  continued\n\n## Done\n\n- [ ] next column card\n"
	b, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(b.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(b.Columns))
	}
	if b.Columns[0].Cards[0].Content != "only card\ncontinued" {
		t.Fatalf("unexpected content: %q", b.Columns[0].Cards[0].Content)
	}
	if len(b.Columns[1].Cards) != 1 || b.Columns[1].Cards[0].Content != "next column card" {
		t.Fatalf("unexpected second column: %+v", b.Columns[1])
	}
}

func TestParseHierarchicalBoardStructure(t *testing.T) {
	doc := "---\nkanban-plugin: board\n---\n\n# Row 1\n\n## Stack A\n\n### To Do\n\n- [ ] a card\n\n## Stack B\n\n### Done\n\n- [ ] done card\n"
	b, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Shape != 1 {
		t.Fatalf("expected hierarchical shape, got %v", b.Shape)
	}
	if len(b.Rows) != 1 || len(b.Rows[0].Stacks) != 2 {
		t.Fatalf("unexpected row/stack structure: %+v", b.Rows)
	}
	if b.Rows[0].Stacks[0].Columns[0].Title != "To Do" || b.Rows[0].Stacks[1].Columns[0].Title != "Done" {
		t.Fatalf("unexpected column titles: %+v", b.Rows[0].Stacks)
	}
}

func TestParseNormalizesCRLF(t *testing.T) {
	doc := strings.ReplaceAll(legacyDoc, "\n", "\r\n")
	b, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(b.Columns) != 2 {
		t.Fatalf("expected CRLF input to parse the same as LF, got %d columns", len(b.Columns))
	}
}

func TestParseInvalidHeaderIsNotValid(t *testing.T) {
	doc := "---\ntitle: Not A Board\n---\n\n## To Do\n\n- [ ] card\n"
	b, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Valid {
		t.Fatal("expected a header without kanban-plugin: board to be invalid")
	}
}

func TestGenerateRoundTripsColumnsAndCards(t *testing.T) {
	b, err := Parse(legacyDoc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Generate(b)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b2, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse of generated doc: %v", err)
	}
	if b2.Title != b.Title || len(b2.Columns) != len(b.Columns) {
		t.Fatalf("round trip mismatch: %+v vs %+v", b2, b)
	}
	for i := range b.Columns {
		if b2.Columns[i].Title != b.Columns[i].Title {
			t.Fatalf("column %d title mismatch: %q vs %q", i, b2.Columns[i].Title, b.Columns[i].Title)
		}
		if len(b2.Columns[i].Cards) != len(b.Columns[i].Cards) {
			t.Fatalf("column %d card count mismatch", i)
		}
	}
}

func TestGenerateOmitsCardsForIncludeColumns(t *testing.T) {
	doc := "---\nkanban-plugin: board\n---\n\n## To Do\n\n- [ ] should not appear\n"
	b, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b.Columns[0].Include = &board.IncludeSource{RawPath: "todo.md"}
	out, err := Generate(b)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected an include column's cards to be omitted from Generate, got %q", out)
	}
}
