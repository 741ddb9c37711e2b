package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStream is one in-flight CreateStream call, driven by the test.
type fakeStream struct {
	messages []Message
	deltas   chan string
	done     chan error
}

type fakeTransport struct {
	started chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{started: make(chan *fakeStream, 8)}
}

func (f *fakeTransport) CreateStream(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error) {
	s := &fakeStream{
		messages: messages,
		deltas:   make(chan string),
		done:     make(chan error),
	}
	f.started <- s

	var last string
	for {
		select {
		case text, ok := <-s.deltas:
			if !ok {
				return last, nil
			}
			last = text
			if onDelta != nil {
				onDelta(text)
			}
		case err := <-s.done:
			return last, err
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
}

type memoryStore struct {
	mu    sync.Mutex
	data  map[string][]Entry
	saves int

	failSave error
	failLoad error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]Entry{}}
}

func (s *memoryStore) Save(contextID string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.saves++
	copied := make([]Entry, len(entries))
	copy(copied, entries)
	s.data[contextID] = copied
	return nil
}

func (s *memoryStore) Load(contextID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad != nil {
		return nil, s.failLoad
	}
	return s.data[contextID], nil
}

func (s *memoryStore) Clear(contextID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, contextID)
	return nil
}

func newTestManager(transport Transport, store HistoryStore) *Manager {
	return NewManager(transport, store, NewPromptBuilder(4), nil)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSubmitStreamsIntoEntry(t *testing.T) {
	transport := newFakeTransport()
	store := newMemoryStore()
	m := newTestManager(transport, store)
	m.Load("main.go")

	id := m.Submit("explain this", "", "go", false)
	if id != 0 {
		t.Fatalf("first identity = %d, want 0", id)
	}
	if !m.Loading(id) {
		t.Fatal("entry should be loading after submit")
	}

	// The question is persisted before any response arrives.
	persisted, _ := store.Load("main.go")
	if len(persisted) != 1 || persisted[0].Prompt != "explain this" || persisted[0].Response != "" {
		t.Fatalf("placeholder not persisted: %+v", persisted)
	}

	s := <-transport.started
	s.deltas <- "It"
	waitFor(t, "first delta", func() bool { return m.Entries()[0].Response == "It" })
	s.deltas <- "It loops"
	waitFor(t, "second delta", func() bool { return m.Entries()[0].Response == "It loops" })

	close(s.deltas)
	waitFor(t, "stream completion", func() bool { return !m.Loading(id) })

	entries := m.Entries()
	if entries[0].Response != "It loops" {
		t.Fatalf("final response = %q", entries[0].Response)
	}
	persisted, _ = store.Load("main.go")
	if persisted[0].Response != "It loops" {
		t.Fatalf("final response not persisted: %+v", persisted)
	}
	if m.Busy() {
		t.Fatal("manager should be idle")
	}
}

func TestSubmitSnapshotsHistoryBeforePlaceholder(t *testing.T) {
	transport := newFakeTransport()
	m := newTestManager(transport, newMemoryStore())
	m.Load("a.py")

	m.Submit("first question", "", "python", false)
	s := <-transport.started

	// 1 system + 1 current: the in-flight placeholder is not in its own
	// prompt context.
	if len(s.messages) != 2 {
		t.Fatalf("first request messages = %d, want 2", len(s.messages))
	}

	s.deltas <- "first answer"
	waitFor(t, "delta applied", func() bool { return m.Entries()[0].Response == "first answer" })
	close(s.deltas)
	waitFor(t, "first done", func() bool { return !m.Busy() })

	m.Submit("second question", "", "python", false)
	s2 := <-transport.started

	// 1 system + 1 prior pair + 1 current.
	if len(s2.messages) != 4 {
		t.Fatalf("second request messages = %d, want 4", len(s2.messages))
	}
	if s2.messages[1].Content != "first question" || s2.messages[2].Content != "first answer" {
		t.Fatalf("prior pair mismatch: %+v", s2.messages[1:3])
	}
	close(s2.deltas)
	waitFor(t, "second done", func() bool { return !m.Busy() })
}

func TestConcurrentSubmissionsDoNotCrossWrite(t *testing.T) {
	transport := newFakeTransport()
	m := newTestManager(transport, newMemoryStore())
	m.Load("main.rs")

	id1 := m.Submit("q1", "", "rust", false)
	s1 := <-transport.started
	id2 := m.Submit("q2", "", "rust", false)
	s2 := <-transport.started

	if id1 == id2 {
		t.Fatalf("identities must be distinct, both %d", id1)
	}
	if !m.Loading(id1) || !m.Loading(id2) {
		t.Fatal("both submissions should be loading")
	}

	// Interleave deltas across the two streams.
	s2.deltas <- "B"
	waitFor(t, "s2 delta", func() bool { return m.Entries()[1].Response == "B" })
	s1.deltas <- "A"
	waitFor(t, "s1 delta", func() bool { return m.Entries()[0].Response == "A" })
	s2.deltas <- "BB"
	waitFor(t, "s2 second delta", func() bool { return m.Entries()[1].Response == "BB" })

	close(s2.deltas)
	waitFor(t, "s2 done", func() bool { return !m.Loading(id2) })
	if !m.Loading(id1) {
		t.Fatal("finishing one stream must not clear the other's loading flag")
	}
	if !m.Busy() {
		t.Fatal("aggregate busy signal should hold while one stream remains")
	}

	close(s1.deltas)
	waitFor(t, "s1 done", func() bool { return !m.Loading(id1) })

	entries := m.Entries()
	if entries[0].Prompt != "q1" || entries[0].Response != "A" {
		t.Fatalf("entry 0 mismatch: %+v", entries[0])
	}
	if entries[1].Prompt != "q2" || entries[1].Response != "BB" {
		t.Fatalf("entry 1 mismatch: %+v", entries[1])
	}
}

func TestSubmitFailureLeavesPartialAndClearsLoading(t *testing.T) {
	transport := newFakeTransport()
	store := newMemoryStore()
	m := newTestManager(transport, store)
	m.Load("x.c")

	id := m.Submit("q", "", "c", false)
	s := <-transport.started
	s.deltas <- "part"
	waitFor(t, "delta", func() bool { return m.Entries()[0].Response == "part" })

	s.done <- errors.New("connection reset")
	waitFor(t, "failure handled", func() bool { return !m.Loading(id) })

	if got := m.Entries()[0].Response; got != "part" {
		t.Fatalf("partial response should remain, got %q", got)
	}
}

func TestCancelAbortsStream(t *testing.T) {
	transport := newFakeTransport()
	m := newTestManager(transport, newMemoryStore())
	m.Load("y.go")

	id := m.Submit("q", "", "go", false)
	s := <-transport.started
	s.deltas <- "so far"
	waitFor(t, "delta", func() bool { return m.Entries()[0].Response == "so far" })

	m.Cancel(id)
	waitFor(t, "cancel", func() bool { return !m.Loading(id) })

	if got := m.Entries()[0].Response; got != "so far" {
		t.Fatalf("partial response should remain after cancel, got %q", got)
	}
}

func TestTimeoutBehavesAsStreamFailure(t *testing.T) {
	transport := newFakeTransport()
	m := newTestManager(transport, newMemoryStore())
	m.Timeout = 20 * time.Millisecond
	m.Load("z.go")

	id := m.Submit("q", "", "go", false)
	<-transport.started

	waitFor(t, "timeout", func() bool { return !m.Loading(id) })
	if m.Busy() {
		t.Fatal("timed-out request must not hold the loading set")
	}
}

func TestLoadResetsIdentityCounterAndLoadingSet(t *testing.T) {
	transport := newFakeTransport()
	store := newMemoryStore()
	store.data["old.go"] = []Entry{{Prompt: "p1", Response: "r1"}, {Prompt: "p2", Response: "r2"}}

	m := newTestManager(transport, store)
	loaded := m.Load("old.go")
	if len(loaded) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(loaded))
	}
	if ids := m.IDs(); len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("reload must reassign identities 0..n-1, got %v", ids)
	}

	// Next identity continues from the loaded length.
	if id := m.Submit("p3", "", "go", false); id != 2 {
		t.Fatalf("next identity = %d, want 2", id)
	}
	s := <-transport.started
	close(s.deltas)
	waitFor(t, "done", func() bool { return !m.Busy() })
}

func TestLoadToleratesStoreFailure(t *testing.T) {
	transport := newFakeTransport()
	store := newMemoryStore()
	store.failLoad = errors.New("disk on fire")

	m := newTestManager(transport, store)
	if loaded := m.Load("broken.go"); len(loaded) != 0 {
		t.Fatalf("store failure must load empty, got %+v", loaded)
	}
}

func TestSaveFailureDoesNotAbortSubmit(t *testing.T) {
	transport := newFakeTransport()
	store := newMemoryStore()
	store.failSave = errors.New("read-only fs")

	m := newTestManager(transport, store)
	m.Load("ro.go")

	id := m.Submit("q", "", "go", false)
	s := <-transport.started
	s.deltas <- "answer"
	close(s.deltas)
	waitFor(t, "done", func() bool { return !m.Loading(id) })

	if got := m.Entries()[0].Response; got != "answer" {
		t.Fatalf("in-memory state must survive persistence failure, got %q", got)
	}
}

func TestClearEmptiesSessionAndResetsCounter(t *testing.T) {
	transport := newFakeTransport()
	store := newMemoryStore()
	m := newTestManager(transport, store)
	m.Load("c.go")

	id := m.Submit("q", "", "go", false)
	s := <-transport.started
	close(s.deltas)
	waitFor(t, "done", func() bool { return !m.Loading(id) })

	m.Clear()
	if len(m.Entries()) != 0 {
		t.Fatal("clear must empty the sequence")
	}
	if entries, _ := store.Load("c.go"); len(entries) != 0 {
		t.Fatalf("clear must wipe the store, got %+v", entries)
	}
	if id := m.Submit("fresh", "", "go", false); id != 0 {
		t.Fatalf("identity counter must reset to 0, got %d", id)
	}
	s = <-transport.started
	close(s.deltas)
	waitFor(t, "done", func() bool { return !m.Busy() })
}

func TestSubmitIncludesCodeContextWhenEnabled(t *testing.T) {
	transport := newFakeTransport()
	m := newTestManager(transport, newMemoryStore())
	m.Load("lib.rs")

	m.Submit("review", "fn a(){}", "rust", true)
	s := <-transport.started
	last := s.messages[len(s.messages)-1]
	if want := "```rust\nfn a(){}\n```"; !strings.Contains(last.Content, want) {
		t.Fatalf("expected code context %q in %q", want, last.Content)
	}
	close(s.deltas)
	waitFor(t, "done", func() bool { return !m.Busy() })

	m.Submit("review again", "fn a(){}", "rust", false)
	s2 := <-transport.started
	last = s2.messages[len(s2.messages)-1]
	if strings.Contains(last.Content, "fn a(){}") {
		t.Fatalf("code context disabled but present: %q", last.Content)
	}
	close(s2.deltas)
	waitFor(t, "done", func() bool { return !m.Busy() })
}
