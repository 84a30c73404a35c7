package include

import (
	"testing"

	"github.com/lexera/boardcore/internal/board"
)

func TestParseSlidesSplitsOnSeparator(t *testing.T) {
	content := "first card\n\n---\n\nsecond card\n\n---\n\nthird card\n"
	cards := ParseSlides(content)
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards, got %d: %+v", len(cards), cards)
	}
	if cards[0].Content != "first card" || cards[1].Content != "second card" || cards[2].Content != "third card" {
		t.Fatalf("unexpected card contents: %+v", cards)
	}
}

func TestParseSlidesAssignsFreshIDs(t *testing.T) {
	cards := ParseSlides("one\n\n---\n\ntwo")
	if cards[0].ID == "" || cards[1].ID == "" {
		t.Fatal("expected every parsed card to get a transient id")
	}
	if cards[0].ID == cards[1].ID {
		t.Fatal("expected distinct transient ids per card")
	}
	if cards[0].Kid != "" {
		t.Fatal("expected kid to remain unset until board normalization")
	}
}

func TestParseSlidesIgnoresInlineDashesWithoutBlankNeighbor(t *testing.T) {
	content := "a line\n---\nstill the same block\n"
	cards := ParseSlides(content)
	if len(cards) != 1 {
		t.Fatalf("expected a bare '---' without a blank neighbor to not split, got %d cards: %+v", len(cards), cards)
	}
}

func TestParseSlidesDropsEmptyBlocks(t *testing.T) {
	content := "\n\n---\n\nonly card\n\n---\n\n\n"
	cards := ParseSlides(content)
	if len(cards) != 1 || cards[0].Content != "only card" {
		t.Fatalf("expected empty blocks to be dropped, got %+v", cards)
	}
}

func TestParseSlidesNormalizesCRLF(t *testing.T) {
	cards := ParseSlides("first\r\n\r\n---\r\n\r\nsecond\r\n")
	if len(cards) != 2 || cards[0].Content != "first" || cards[1].Content != "second" {
		t.Fatalf("unexpected cards from CRLF content: %+v", cards)
	}
}

func TestRenderSlidesRoundTripsWithParseSlides(t *testing.T) {
	original := "first card\n\n---\n\nsecond card\n\n---\n\nthird card\n"
	cards := ParseSlides(original)
	rendered := RenderSlides(cards)

	cards2 := ParseSlides(rendered)
	if len(cards2) != len(cards) {
		t.Fatalf("round trip changed card count: %d vs %d", len(cards2), len(cards))
	}
	for i := range cards {
		if cards[i].Content != cards2[i].Content {
			t.Fatalf("round trip changed content at %d: %q vs %q", i, cards[i].Content, cards2[i].Content)
		}
	}
}

func TestRenderSlidesSingleCardHasNoSeparator(t *testing.T) {
	out := RenderSlides([]board.Card{{Content: "solo"}})
	if out != "solo\n" {
		t.Fatalf("RenderSlides single card = %q, want %q", out, "solo\n")
	}
}
