package storage

import (
	"context"
	"os"
	"testing"

	"github.com/lexera/boardcore/internal/watcher"
)

func TestHandleWatchEventAbsorbsSelfWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFixture(t, dir, "board.md", fixtureBoard)

	e := newTestEngine(t)
	id, err := e.AddBoard(ctx, path)
	if err != nil {
		t.Fatalf("AddBoard: %v", err)
	}

	// Simulate the engine having just written this exact content itself.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	e.selfWrite.Register(path, string(data))

	before, err := e.ReadBoard(id)
	if err != nil {
		t.Fatalf("ReadBoard: %v", err)
	}

	ev := watcher.Event{Kind: watcher.MainFileChanged, Path: path, BoardID: id}
	if err := e.HandleWatchEvent(ctx, ev); err != nil {
		t.Fatalf("HandleWatchEvent: %v", err)
	}

	after, err := e.ReadBoard(id)
	if err != nil {
		t.Fatalf("ReadBoard: %v", err)
	}
	if before.Title != after.Title || len(before.Columns) != len(after.Columns) {
		t.Fatalf("self-write event should not have triggered a visible reload")
	}
}

func TestHandleWatchEventReloadsExternalChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFixture(t, dir, "board.md", fixtureBoard)

	e := newTestEngine(t)
	id, err := e.AddBoard(ctx, path)
	if err != nil {
		t.Fatalf("AddBoard: %v", err)
	}

	// An external edit: nothing was registered with the self-write tracker.
	const edited = `---
kanban-plugin: board
title: Sprint
---

## To Do

- [ ] first card
- [ ] a brand new external card

## Done

- [x] second card
`
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ev := watcher.Event{Kind: watcher.MainFileChanged, Path: path, BoardID: id}
	if err := e.HandleWatchEvent(ctx, ev); err != nil {
		t.Fatalf("HandleWatchEvent: %v", err)
	}

	b, err := e.ReadBoard(id)
	if err != nil {
		t.Fatalf("ReadBoard: %v", err)
	}
	found := false
	for _, c := range b.Columns[0].Cards {
		if c.Content == "a brand new external card" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the external edit to be picked up by ReloadBoard")
	}
}

func TestHandleWatchEventFileDeletedReturnsNil(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFixture(t, dir, "board.md", fixtureBoard)

	e := newTestEngine(t)
	id, err := e.AddBoard(ctx, path)
	if err != nil {
		t.Fatalf("AddBoard: %v", err)
	}

	ev := watcher.Event{Kind: watcher.FileDeleted, Path: path, BoardID: id}
	if err := e.HandleWatchEvent(ctx, ev); err != nil {
		t.Fatalf("HandleWatchEvent should not error on FileDeleted: %v", err)
	}
}

func TestRunWatchLoopIsNoopWithNilWatcher(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Should return immediately rather than block, since e.watcher is nil.
	e.RunWatchLoop(ctx)
}
