package parser

import (
	"strings"
	"testing"

	"github.com/lexera/boardcore/internal/board"
)

func TestParseSettingsReadsKnownKeys(t *testing.T) {
	header := "kanban-plugin: board\nkanban-plugin-column-width: 272\nkanban-plugin-color-board: #fff\n"
	s := parseSettings(header)
	if s.ColumnWidth != "272" {
		t.Fatalf("ColumnWidth = %q, want %q", s.ColumnWidth, "272")
	}
	if s.ColorBoard != "#fff" {
		t.Fatalf("ColorBoard = %q, want %q", s.ColorBoard, "#fff")
	}
}

func TestParseSettingsIgnoresUnknownKeys(t *testing.T) {
	header := "kanban-plugin: board\nsome-other-key: value\n"
	s := parseSettings(header)
	if s != (board.Settings{}) {
		t.Fatalf("expected settings to stay zero for unrecognized keys, got %+v", s)
	}
}

func TestParseSettingsCoercesIntegerKeys(t *testing.T) {
	header := "kanban-plugin-column-width: not-a-number\nkanban-plugin-row-height: -5\nkanban-plugin-font-size: 14\n"
	s := parseSettings(header)
	if s.ColumnWidth != "" {
		t.Fatalf("expected a non-numeric integer-key value to be dropped, got %q", s.ColumnWidth)
	}
	if s.RowHeight != "" {
		t.Fatalf("expected a negative integer-key value to be dropped, got %q", s.RowHeight)
	}
	if s.FontSize != "14" {
		t.Fatalf("FontSize = %q, want %q", s.FontSize, "14")
	}
}

func TestRewriteSettingsUpdatesExistingLineInPlace(t *testing.T) {
	header := "kanban-plugin: board\nkanban-plugin-column-width: 100\n"
	out := rewriteSettings(header, board.Settings{ColumnWidth: "272"})
	if !strings.Contains(out, "kanban-plugin-column-width: 272") {
		t.Fatalf("expected the existing settings line to be rewritten in place, got %q", out)
	}
	if strings.Count(out, "kanban-plugin-column-width") != 1 {
		t.Fatalf("expected exactly one column-width line, got %q", out)
	}
}

func TestRewriteSettingsAppendsMissingNonEmptyKeys(t *testing.T) {
	out := rewriteSettings("kanban-plugin: board", board.Settings{ColorBoard: "#123"})
	if !strings.Contains(out, "kanban-plugin-color-board: #123") {
		t.Fatalf("expected a missing non-empty setting to be appended, got %q", out)
	}
}

func TestRewriteSettingsOmitsEmptyMissingKeys(t *testing.T) {
	out := rewriteSettings("kanban-plugin: board", board.Settings{})
	if strings.Contains(out, "kanban-plugin-color-board") {
		t.Fatalf("expected empty settings to not be appended, got %q", out)
	}
}

func TestRewriteSettingsEnsuresPluginHeaderKeyPresent(t *testing.T) {
	out := rewriteSettings("", board.Settings{ColumnWidth: "272"})
	lines := strings.Split(out, "\n")
	if strings.TrimSpace(lines[0]) != pluginHeaderKey {
		t.Fatalf("expected the plugin header key to lead the rewritten header, got %q", out)
	}
}

func TestRewriteSettingsTrimsStrayBlankLines(t *testing.T) {
	out := rewriteSettings("\n\nkanban-plugin: board\n\n\n", board.Settings{})
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Fatalf("expected leading/trailing blank lines to be trimmed, got %q", out)
	}
}
