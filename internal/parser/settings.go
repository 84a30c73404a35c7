package parser

import (
	"strconv"
	"strings"

	"github.com/lexera/boardcore/internal/board"
)

// settingsFieldOrder mirrors board.SettingsKeys positionally so we can
// scan/rewrite by index without reflection.
var settingsFieldOrder = board.SettingsKeys

func settingsGet(s *board.Settings, i int) string {
	switch i {
	case 0:
		return s.ColumnWidth
	case 1:
		return s.LayoutRows
	case 2:
		return s.LayoutPreset
	case 3:
		return s.RowHeight
	case 4:
		return s.FontFamily
	case 5:
		return s.FontSize
	case 6:
		return s.WhitespaceMode
	case 7:
		return s.HTMLCommentMode
	case 8:
		return s.HTMLContentMode
	case 9:
		return s.TagVisibility
	case 10:
		return s.StickyStackMode
	case 11:
		return s.ArrowKeyFocusScroll
	case 12:
		return s.ColorBoard
	case 13:
		return s.ColorColumn
	case 14:
		return s.ColorCard
	case 15:
		return s.ColorTag
	case 16:
		return s.ColorExtra
	}
	return ""
}

func settingsSet(s *board.Settings, i int, v string) {
	switch i {
	case 0:
		s.ColumnWidth = v
	case 1:
		s.LayoutRows = v
	case 2:
		s.LayoutPreset = v
	case 3:
		s.RowHeight = v
	case 4:
		s.FontFamily = v
	case 5:
		s.FontSize = v
	case 6:
		s.WhitespaceMode = v
	case 7:
		s.HTMLCommentMode = v
	case 8:
		s.HTMLContentMode = v
	case 9:
		s.TagVisibility = v
	case 10:
		s.StickyStackMode = v
	case 11:
		s.ArrowKeyFocusScroll = v
	case 12:
		s.ColorBoard = v
	case 13:
		s.ColorColumn = v
	case 14:
		s.ColorCard = v
	case 15:
		s.ColorTag = v
	case 16:
		s.ColorExtra = v
	}
}

// parseSettings scans the YAML header line-by-line for any of the 17
// canonical keys, coercing integer-typed keys via a finite non-negative
// integer parse and leaving the rest as opaque strings.
func parseSettings(header string) board.Settings {
	var s board.Settings
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		for i, k := range settingsFieldOrder {
			if k != key {
				continue
			}
			if board.IntegerKeys[k] {
				if n, ok := parseNonNegativeInt(val); ok {
					settingsSet(&s, i, strconv.Itoa(n))
				}
				continue
			}
			settingsSet(&s, i, val)
		}
	}
	return s
}

// rewriteSettings rewrites settings keys in place within header when they
// already exist, and appends any missing keys (that carry a non-empty
// value) immediately before the closing delimiter the caller will add.
func rewriteSettings(header string, s board.Settings) string {
	lines := strings.Split(header, "\n")
	seen := make(map[string]bool, len(settingsFieldOrder))

	for li, line := range lines {
		key, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		for i, k := range settingsFieldOrder {
			if k != key {
				continue
			}
			seen[k] = true
			v := settingsGet(&s, i)
			lines[li] = k + ": " + v
		}
	}

	var out []string
	out = append(out, lines...)
	for i, k := range settingsFieldOrder {
		if seen[k] {
			continue
		}
		v := settingsGet(&s, i)
		if v == "" {
			continue
		}
		out = append(out, k+": "+v)
	}

	hasPluginKey := false
	for _, l := range out {
		if strings.TrimSpace(l) == pluginHeaderKey {
			hasPluginKey = true
			break
		}
	}
	if !hasPluginKey {
		out = append([]string{pluginHeaderKey}, out...)
	}

	// Drop stray leading/trailing blank lines left over from an empty
	// original header.
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}
