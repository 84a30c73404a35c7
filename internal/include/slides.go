package include

import (
	"strings"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/kid"
)

func normalizeLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ParseSlides splits slide-file content into cards. A separator is any line
// whose trimmed form is exactly "---" with at least one blank neighbouring
// line (above or below); every other non-empty block becomes one card with
// a freshly generated transient id and no kid — kid assignment happens when
// the owning board is next normalized for write.
func ParseSlides(content string) []board.Card {
	lines := strings.Split(normalizeLF(content), "\n")

	isBlank := func(i int) bool {
		return i < 0 || i >= len(lines) || strings.TrimSpace(lines[i]) == ""
	}
	isSeparator := func(i int) bool {
		return strings.TrimSpace(lines[i]) == "---" && (isBlank(i-1) || isBlank(i+1))
	}

	var blocks []string
	var cur []string
	flush := func() {
		block := strings.TrimSpace(strings.Join(cur, "\n"))
		if block != "" {
			blocks = append(blocks, block)
		}
		cur = nil
	}
	for i, line := range lines {
		if isSeparator(i) {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()

	cards := make([]board.Card, 0, len(blocks))
	for _, block := range blocks {
		cards = append(cards, board.Card{
			ID:      kid.Generate(),
			Content: block,
		})
	}
	return cards
}

// RenderSlides is the inverse of ParseSlides: card contents joined by a
// blank-line-bounded "---" separator, with a trailing newline.
func RenderSlides(cards []board.Card) string {
	var sb strings.Builder
	for i, c := range cards {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(c.Content)
	}
	sb.WriteString("\n")
	return sb.String()
}
