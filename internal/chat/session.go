package chat

import (
	"context"
	"sync"
	"time"
)

// Transport is the streaming client surface the Manager needs. *Client
// satisfies it; tests substitute a fake.
type Transport interface {
	CreateStream(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error)
}

// HistoryStore persists one []Entry per context identifier. Implementations
// live in internal/history; the Manager tolerates every store failure by
// logging and continuing.
type HistoryStore interface {
	Save(contextID string, entries []Entry) error
	Load(contextID string) ([]Entry, error)
	Clear(contextID string) error
}

// Manager owns the in-memory conversation for one open context. Entries get
// a stable integer identity at creation, distinct from slice position; every
// streaming update is addressed by identity so concurrent submissions never
// corrupt each other. All state is instance-owned with an explicit
// lifecycle: construct on context open, Load on context switch, discard when
// the panel closes.
type Manager struct {
	transport Transport
	store     HistoryStore
	prompts   *PromptBuilder
	logger    Logger

	// Timeout bounds one submission end to end; zero means no deadline
	// beyond the transport's own.
	Timeout time.Duration

	mu        sync.Mutex
	contextID string
	byID      map[int]*Entry
	order     []int
	nextID    int
	loading   map[int]struct{}
	cancels   map[int]context.CancelFunc

	// OnUpdate is invoked (outside the lock) after any mutation of the
	// sequence or the loading set, so a host can re-render.
	OnUpdate func()
}

func NewManager(transport Transport, store HistoryStore, prompts *PromptBuilder, logger Logger) *Manager {
	return &Manager{
		transport: transport,
		store:     store,
		prompts:   prompts,
		logger:    logger,
		byID:      map[int]*Entry{},
		loading:   map[int]struct{}{},
		cancels:   map[int]context.CancelFunc{},
	}
}

// Load replaces the session wholesale with the persisted history for
// contextID. Reload reassigns sequential identities 0..n-1; the identity
// counter resets to the loaded length and the loading set is cleared. A
// store failure loads an empty session.
func (m *Manager) Load(contextID string) []Entry {
	loaded, err := m.store.Load(contextID)
	if err != nil {
		m.logError("history load failed", contextID, err)
		loaded = nil
	}

	m.mu.Lock()
	m.cancelAllLocked()
	m.contextID = contextID
	m.byID = map[int]*Entry{}
	m.order = m.order[:0]
	m.loading = map[int]struct{}{}
	for i := range loaded {
		e := loaded[i]
		m.byID[i] = &e
		m.order = append(m.order, i)
	}
	m.nextID = len(loaded)
	m.mu.Unlock()

	m.notify()
	return loaded
}

// Clear wipes both the persisted and in-memory conversation for the current
// context and resets the identity counter.
func (m *Manager) Clear() {
	m.mu.Lock()
	contextID := m.contextID
	m.cancelAllLocked()
	m.byID = map[int]*Entry{}
	m.order = m.order[:0]
	m.nextID = 0
	m.loading = map[int]struct{}{}
	m.mu.Unlock()

	if err := m.store.Clear(contextID); err != nil {
		m.logError("history clear failed", contextID, err)
	}
	m.notify()
}

// Submit starts one request/response turn. It returns the identity assigned
// to the new entry and never an error: failures are logged and leave the
// entry's response as whatever partial text accumulated. The streaming work
// runs on its own goroutine; the caller observes progress through OnUpdate
// and Entries.
func (m *Manager) Submit(request, currentCode, language string, useCodeContext bool) int {
	m.mu.Lock()
	// Snapshot history before the placeholder is appended so the
	// in-flight turn is never fed back to the model as prior context.
	history := make([]Entry, 0, len(m.order))
	for _, id := range m.order {
		history = append(history, *m.byID[id])
	}

	id := m.nextID
	m.nextID++
	entry := &Entry{Prompt: request}
	m.byID[id] = entry
	m.order = append(m.order, id)
	m.loading[id] = struct{}{}

	var ctx context.Context
	var cancel context.CancelFunc
	if m.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), m.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	m.cancels[id] = cancel
	contextID := m.contextID
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	// Persist the question immediately so a crash mid-stream still leaves
	// it recorded.
	if err := m.store.Save(contextID, snapshot); err != nil {
		m.logError("history save failed", contextID, err)
	}
	m.notify()

	code := ""
	if useCodeContext {
		code = currentCode
	}
	messages := m.prompts.BuildMessages(request, code, language, history)

	go m.run(ctx, cancel, id, contextID, messages)
	return id
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, id int, contextID string, messages []Message) {
	defer cancel()

	final, err := m.transport.CreateStream(ctx, messages, func(cumulative string) {
		m.setResponse(id, cumulative)
	})

	m.setResponse(id, final)

	m.mu.Lock()
	delete(m.loading, id)
	delete(m.cancels, id)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err != nil {
		m.logError("completion stream failed", contextID, err)
	} else if saveErr := m.store.Save(contextID, snapshot); saveErr != nil {
		m.logError("history save failed", contextID, saveErr)
	}
	m.notify()
}

// Cancel aborts the in-flight stream for one identity. Further deltas are
// suppressed and the final persist is skipped; the partial response stays
// in place.
func (m *Manager) Cancel(id int) {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelAll aborts every in-flight stream.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.cancels))
	for _, c := range m.cancels {
		cancels = append(cancels, c)
	}
	m.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

func (m *Manager) cancelAllLocked() {
	for id, c := range m.cancels {
		c()
		delete(m.cancels, id)
	}
}

// setResponse overwrites the response of the entry with the given identity.
// Identity-addressed on purpose: positions shift when submissions
// interleave, identities never do.
func (m *Manager) setResponse(id int, text string) {
	m.mu.Lock()
	entry, ok := m.byID[id]
	if ok {
		entry.Response = text
	}
	m.mu.Unlock()
	if ok {
		m.notify()
	}
}

// Entries returns a copy of the conversation in order.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// IDs returns the identities of the conversation in order, aligned with
// Entries.
func (m *Manager) IDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, len(m.order))
	copy(ids, m.order)
	return ids
}

// Loading reports whether the entry with the given identity is streaming.
func (m *Manager) Loading(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loading[id]
	return ok
}

// Busy reports whether any request is in flight.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loading) > 0
}

// ContextID returns the identifier of the currently open context.
func (m *Manager) ContextID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contextID
}

func (m *Manager) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.byID[id])
	}
	return out
}

func (m *Manager) notify() {
	if m.OnUpdate != nil {
		m.OnUpdate()
	}
}

func (m *Manager) logError(message, contextID string, err error) {
	if m.logger != nil {
		m.logger.Error(message, map[string]interface{}{
			"context": contextID,
			"error":   err.Error(),
		})
	}
}
