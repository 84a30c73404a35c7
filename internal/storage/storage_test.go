package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexera/boardcore/internal/include"
)

const fixtureBoard = `---
kanban-plugin: board
title: Sprint
---

## To Do

- [ ] first card

## Done

- [x] second card
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(include.NewMap(), nil, nil, 0)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestAddBoardAndReadBoard(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFixture(t, dir, "board.md", fixtureBoard)

	e := newTestEngine(t)
	id, err := e.AddBoard(ctx, path)
	if err != nil {
		t.Fatalf("AddBoard: %v", err)
	}

	b, err := e.ReadBoard(id)
	if err != nil {
		t.Fatalf("ReadBoard: %v", err)
	}
	if b.Title != "Sprint" {
		t.Fatalf("Title = %q, want Sprint", b.Title)
	}
	if len(b.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(b.Columns))
	}
}
