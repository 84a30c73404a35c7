package searchquery

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

func toLower(s string) string { return strings.ToLower(s) }

// stripAccents removes combining marks left behind by NFD decomposition,
// giving an accent-folded comparison key.
func stripAccents(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// FoldText is the public accent-folding, case-insensitive comparison key
// used for substring matches against card/board/column text.
func FoldText(s string) string {
	return stripAccents(norm.NFD.String(strings.ToLower(s)))
}
