// Package parser converts kanban markdown documents to and from the board
// model. The conversion is pure: Parse/Generate take and return strings,
// with no filesystem or include-file access (that belongs to the include
// resolver and the storage engine).
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/kid"
)

const pluginHeaderKey = "kanban-plugin: board"

var taskPrefixes = []string{"- [ ] ", "- [x] "}

// normalizeLF converts CRLF and bare CR line endings to LF, the invariant
// every other component in this package relies on.
func normalizeLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// splitHeaderFooter pulls the leading `---`-delimited YAML header and the
// trailing `%%`-prefixed footer off the document, returning the remaining
// body lines for structural parsing.
func splitHeaderFooter(src string) (header, body, footer string) {
	lines := strings.Split(src, "\n")
	idx := 0

	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end != -1 {
			header = strings.Join(lines[1:end], "\n")
			idx = end + 1
		}
	}

	footerStart := -1
	for i := idx; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "%%") {
			footerStart = i
			break
		}
	}
	if footerStart == -1 {
		body = strings.Join(lines[idx:], "\n")
		return
	}
	body = strings.Join(lines[idx:footerStart], "\n")
	footer = strings.Join(lines[footerStart:], "\n")
	return
}

func isBoardHeader(header string) bool {
	for _, line := range strings.Split(header, "\n") {
		if strings.TrimSpace(line) == pluginHeaderKey {
			return true
		}
	}
	return false
}

// detectShape reports whether body uses the hierarchical (`# Row`) or
// legacy (flat `## Column`) structure.
func detectShape(body string) board.Shape {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return board.ShapeHierarchical
		}
	}
	return board.ShapeLegacy
}

// Parse converts a UTF-8 kanban markdown document into a Board. Line
// endings are normalized to LF before any structural parsing happens.
func Parse(src string) (*board.Board, error) {
	src = normalizeLF(src)
	header, body, footer := splitHeaderFooter(src)

	b := &board.Board{
		Header: header,
		Footer: footer,
		Valid:  isBoardHeader(header),
	}
	b.Settings = parseSettings(header)
	b.Title = parseTitle(header)

	b.Shape = detectShape(body)
	if b.Shape == board.ShapeHierarchical {
		b.Rows = parseHierarchical(body)
	} else {
		b.Columns = parseLegacy(body)
	}
	return b, nil
}

func parseTitle(header string) string {
	for _, line := range strings.Split(header, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "title:") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "title:"))
		}
	}
	return ""
}

func parseLegacy(body string) []board.Column {
	var cols []board.Column
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "## ") {
			title := strings.TrimPrefix(line, "## ")
			col := board.Column{ID: fmt.Sprintf("col-%d", len(cols)), Title: title}
			i++
			i = parseCardsInto(&col, lines, i)
			cols = append(cols, col)
			continue
		}
		i++
	}
	return cols
}

func parseHierarchical(body string) []board.Row {
	var rows []board.Row
	lines := strings.Split(body, "\n")
	i := 0

	ensureRow := func() *board.Row {
		if len(rows) == 0 {
			rows = append(rows, board.Row{ID: "row-0", Title: "Default"})
		}
		return &rows[len(rows)-1]
	}
	ensureStack := func() *board.Stack {
		row := ensureRow()
		if len(row.Stacks) == 0 {
			row.Stacks = append(row.Stacks, board.Stack{ID: row.ID + "-stack-0", Title: "Default"})
		}
		return &row.Stacks[len(row.Stacks)-1]
	}

	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "### "):
			stack := ensureStack()
			title := strings.TrimPrefix(line, "### ")
			col := board.Column{ID: fmt.Sprintf("%s-col-%d", stack.ID, len(stack.Columns)), Title: title}
			i++
			i = parseCardsInto(&col, lines, i)
			stack.Columns = append(stack.Columns, col)
		case strings.HasPrefix(line, "## "):
			row := ensureRow()
			title := strings.TrimPrefix(line, "## ")
			row.Stacks = append(row.Stacks, board.Stack{ID: fmt.Sprintf("%s-stack-%d", row.ID, len(row.Stacks)), Title: title})
			i++
		case strings.HasPrefix(line, "# "):
			title := strings.TrimPrefix(line, "# ")
			rows = append(rows, board.Row{ID: fmt.Sprintf("row-%d", len(rows)), Title: title})
			i++
		default:
			i++
		}
	}
	return rows
}

// parseCardsInto consumes task lines (and their continuation lines)
// starting at lines[i] until the next structural element, appending the
// resulting cards to col. It returns the index of the first unconsumed
// line.
func parseCardsInto(col *board.Column, lines []string, i int) int {
	var current *board.Card
	var contLines []string

	flush := func() {
		if current == nil {
			return
		}
		content := current.Content
		if len(contLines) > 0 {
			content += "\n" + strings.Join(contLines, "\n")
		}
		k, stripped := kid.Resolve("", content)
		current.Kid = k
		current.Content = stripped
		col.Cards = append(col.Cards, *current)
		current = nil
		contLines = nil
	}

	isStructural := func(line string) bool {
		return strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ") ||
			strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "%%") ||
			strings.TrimSpace(line) == "---" || isTaskLine(line)
	}

	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ") ||
			strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "%%") ||
			strings.TrimSpace(line) == "---" {
			flush()
			return i
		}
		if isTaskLine(line) {
			flush()
			checked := strings.HasPrefix(line, "- [x] ")
			summary := line[len("- [ ] "):]
			current = &board.Card{Checked: checked, Content: summary}
			i++
			continue
		}
		if current != nil {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				// A blank line only ends collection if the next non-blank
				// line is a new structural element.
				j := i + 1
				for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
					j++
				}
				if j >= len(lines) || isStructural(lines[j]) {
					i = j
					continue
				}
				contLines = append(contLines, "")
				i++
				continue
			}
			if strings.HasPrefix(line, "  ") || true {
				contLines = append(contLines, strings.TrimPrefix(line, "  "))
			}
			i++
			continue
		}
		i++
	}
	flush()
	return i
}

func isTaskLine(line string) bool {
	for _, p := range taskPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Generate serializes a Board back into markdown. Columns sourced from an
// include file emit only their header line; their card content is written
// to the include file by the storage engine via the include resolver.
func Generate(b *board.Board) (string, error) {
	var sb strings.Builder

	writeHeader(&sb, b)

	if b.Shape == board.ShapeHierarchical {
		writeHierarchical(&sb, b)
	} else {
		writeLegacy(&sb, b)
	}

	if b.Footer != "" {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString(b.Footer)
	}

	return sb.String(), nil
}

func writeHeader(sb *strings.Builder, b *board.Board) {
	sb.WriteString("---\n")
	header := rewriteSettings(b.Header, b.Settings)
	if header != "" {
		sb.WriteString(header)
		if !strings.HasSuffix(header, "\n") {
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(pluginHeaderKey + "\n")
	}
	sb.WriteString("---\n\n")
}

func writeLegacy(sb *strings.Builder, b *board.Board) {
	for _, col := range b.Columns {
		writeColumn(sb, col)
	}
}

func writeHierarchical(sb *strings.Builder, b *board.Board) {
	for _, row := range b.Rows {
		sb.WriteString("# " + row.Title + "\n\n")
		for _, stack := range row.Stacks {
			sb.WriteString("## " + stack.Title + "\n\n")
			for _, col := range stack.Columns {
				sb.WriteString("### " + col.Title + "\n\n")
				writeCards(sb, col)
			}
		}
	}
}

func writeColumn(sb *strings.Builder, col board.Column) {
	sb.WriteString("## " + col.Title + "\n\n")
	if col.Include != nil {
		return
	}
	writeCards(sb, col)
}

func writeCards(sb *strings.Builder, col board.Column) {
	if col.Include != nil {
		return
	}
	for _, c := range col.Cards {
		mark := " "
		if c.Checked {
			mark = "x"
		}
		lines := strings.Split(c.Content, "\n")
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", mark, lines[0]))
		for _, cont := range lines[1:] {
			sb.WriteString("  " + cont + "\n")
		}
	}
	sb.WriteString("\n")
}

// parseNonNegativeInt coerces s into a non-negative integer, returning ok
// = false for anything else (negative, non-numeric, empty).
func parseNonNegativeInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
