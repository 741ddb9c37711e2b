package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplicationSubmitEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"use a map\"}}]}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL
	cfg.HistoryRoot = t.TempDir()

	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	file := filepath.Join(t.TempDir(), "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ed, err := application.OpenFile(file)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	if application.Session.ContextID() != ed.Path {
		t.Fatalf("context id = %q, want %q", application.Session.ContextID(), ed.Path)
	}

	id := application.Submit(ed, "how do I dedupe this slice?")

	deadline := time.Now().Add(3 * time.Second)
	for application.Session.Loading(id) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if application.Session.Loading(id) {
		t.Fatal("submission never finished")
	}

	entries := application.Session.Entries()
	if len(entries) != 1 || entries[0].Response != "use a map" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	// A fresh application hydrates the persisted conversation.
	again, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("second application: %v", err)
	}
	if _, err := again.OpenFile(file); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reloaded := again.Session.Entries()
	if len(reloaded) != 1 || reloaded[0].Response != "use a map" {
		t.Fatalf("history not hydrated: %+v", reloaded)
	}
}

func TestOpenFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "k"
	cfg.HistoryRoot = t.TempDir()

	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := application.OpenFile(filepath.Join(t.TempDir(), "gone.go")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
