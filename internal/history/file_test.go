package history

import (
	"os"
	"path/filepath"
	"testing"

	"codechat/internal/chat"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	entries := []chat.Entry{
		{Prompt: "what is this?", Response: "a parser"},
		{Prompt: "fix it", Response: "```go\nfunc f() {}\n```"},
	}
	if err := store.Save("/src/parser.go", entries); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load("/src/parser.go")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded[0] != entries[0] || loaded[1] != entries[1] {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestFileStoreUnknownContextIsEmpty(t *testing.T) {
	store := NewFileStore(t.TempDir())

	loaded, err := store.Load("/never/seen.go")
	if err != nil {
		t.Fatalf("unknown context must not error: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty, got %+v", loaded)
	}
}

func TestFileStoreContextsDoNotCollide(t *testing.T) {
	store := NewFileStore(t.TempDir())

	if err := store.Save("/a.go", []chat.Entry{{Prompt: "a"}}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.Save("/b.go", []chat.Entry{{Prompt: "b"}}); err != nil {
		t.Fatalf("save b: %v", err)
	}

	a, _ := store.Load("/a.go")
	b, _ := store.Load("/b.go")
	if len(a) != 1 || a[0].Prompt != "a" {
		t.Fatalf("context a mismatch: %+v", a)
	}
	if len(b) != 1 || b[0].Prompt != "b" {
		t.Fatalf("context b mismatch: %+v", b)
	}
}

func TestFileStoreClear(t *testing.T) {
	store := NewFileStore(t.TempDir())

	if err := store.Save("/a.go", []chat.Entry{{Prompt: "a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear("/a.go"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	loaded, err := store.Load("/a.go")
	if err != nil || len(loaded) != 0 {
		t.Fatalf("expected empty after clear, got %+v err %v", loaded, err)
	}

	// Clearing an absent context is a no-op.
	if err := store.Clear("/missing.go"); err != nil {
		t.Fatalf("clear missing: %v", err)
	}
}

func TestFileStoreClearAll(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)

	for _, id := range []string{"/a.go", "/b.go", "/c.go"} {
		if err := store.Save(id, []chat.Entry{{Prompt: id}}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := store.ClearAll(); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(root, "*.json"))
	if len(matches) != 0 {
		t.Fatalf("expected no history files, got %v", matches)
	}
}

func TestFileStoreSaveOverwritesAtomically(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)

	if err := store.Save("/a.go", []chat.Entry{{Prompt: "v1"}}); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := store.Save("/a.go", []chat.Entry{{Prompt: "v1"}, {Prompt: "v2"}}); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	loaded, err := store.Load("/a.go")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
