// Package session implements the session repository and the active-session
// tracker: CRUD over durable storage, preview/title projection, the aggregate
// metadata index, and the single "currently open" session pointer.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/storage"
)

// Summarizer projects an agent state into a display title and preview. It is
// injected so the manager stays agnostic of the agent's internal schema.
type Summarizer func(domain.ResearchState) domain.Summary

// EventType identifies what changed in the session set.
type EventType string

const (
	EventCreated   EventType = "created"
	EventUpdated   EventType = "updated"
	EventRenamed   EventType = "renamed"
	EventDeleted   EventType = "deleted"
	EventActivated EventType = "activated"
)

// Event is a change notification for UI layers. For EventActivated an empty
// ID means the active session was cleared.
type Event struct {
	Type EventType `json:"type"`
	ID   string    `json:"id"`
}

// Manager owns the in-memory session set. The in-memory copy is authoritative
// for the running process; storage is a best-effort durability layer, so every
// persistence failure is logged and swallowed rather than surfaced.
type Manager struct {
	store     storage.Store
	summarize Summarizer

	mu     sync.RWMutex
	index  []domain.SessionMetadata
	active *domain.Session
	subs   []chan Event
}

// Option configures a Manager.
type Option func(*Manager)

// WithSummarizer overrides the default state projection.
func WithSummarizer(fn Summarizer) Option {
	return func(m *Manager) { m.summarize = fn }
}

// NewManager loads the metadata index and the persisted active pointer from
// storage. A persisted pointer that no longer resolves to a session is
// silently dropped.
func NewManager(ctx context.Context, store storage.Store, opts ...Option) (*Manager, error) {
	m := &Manager{store: store, summarize: domain.Summarize}
	for _, opt := range opts {
		opt(m)
	}

	index, err := store.GetIndex(ctx)
	if err != nil {
		slog.Warn("Loading session index failed, starting empty", "error", err)
	}
	m.index = index

	activeID, err := store.GetActiveID(ctx)
	if err != nil {
		slog.Warn("Loading active pointer failed", "error", err)
	}
	if activeID != "" {
		m.mu.Lock()
		defer m.mu.Unlock()
		if meta, ok := m.findLocked(activeID); ok {
			m.active = m.loadLocked(ctx, meta)
		} else {
			// Stale pointer: the session is gone, fall back to none.
			m.softPersist("clear stale active pointer", store.PutActiveID(ctx, ""))
		}
	}

	return m, nil
}

// Create builds a new empty session, prepends it to the index, and makes it
// the active session. An empty title gets the default placeholder.
func (m *Manager) Create(ctx context.Context, title string) *domain.Session {
	if title == "" {
		title = domain.DefaultTitle
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Preview:   m.summarize(domain.ResearchState{}).Preview,
	}

	m.mu.Lock()
	m.index = append([]domain.SessionMetadata{sess.Metadata()}, m.index...)
	m.active = sess

	m.softPersist("write session", m.store.PutSession(ctx, sess))
	m.softPersist("write index", m.store.PutIndex(ctx, m.index))
	m.softPersist("write active pointer", m.store.PutActiveID(ctx, sess.ID))

	out := *sess
	m.publishLocked(Event{Type: EventCreated, ID: sess.ID})
	m.publishLocked(Event{Type: EventActivated, ID: sess.ID})
	m.mu.Unlock()

	return &out
}

// Update replaces a session's state, recomputing title and preview. Updating
// a session that no longer exists is a silent no-op: deletes racing in-flight
// updates are expected.
func (m *Manager) Update(ctx context.Context, id string, state domain.ResearchState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.indexOfLocked(id)
	if !ok {
		slog.Debug("Ignoring update for missing session", "id", id)
		return
	}
	meta := m.index[i]

	sum := m.summarize(state)
	title := meta.Title
	if sum.Title != "" {
		title = sum.Title
	}

	sess := &domain.Session{
		ID:        id,
		Title:     title,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: bump(meta.UpdatedAt),
		Preview:   sum.Preview,
		State:     state,
	}
	if m.active != nil && m.active.ID == id {
		m.active = sess
	}

	// The metadata entry is edited in place: updates never re-sort the index.
	m.index[i] = sess.Metadata()

	m.softPersist("write session", m.store.PutSession(ctx, sess))
	m.softPersist("write index", m.store.PutIndex(ctx, m.index))

	m.publishLocked(Event{Type: EventUpdated, ID: id})
}

// Rename sets a session's title in both the full record and the index entry.
// Renaming a missing session is a silent no-op.
func (m *Manager) Rename(ctx context.Context, id, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.indexOfLocked(id)
	if !ok {
		slog.Debug("Ignoring rename for missing session", "id", id)
		return
	}

	sess := m.loadLocked(ctx, m.index[i])
	sess.Title = title
	sess.UpdatedAt = bump(m.index[i].UpdatedAt)
	if m.active != nil && m.active.ID == id {
		m.active = sess
	}
	m.index[i] = sess.Metadata()

	m.softPersist("write session", m.store.PutSession(ctx, sess))
	m.softPersist("write index", m.store.PutIndex(ctx, m.index))

	m.publishLocked(Event{Type: EventRenamed, ID: id})
}

// Delete removes a session's record and index entry. If it was the active
// session the active pointer is cleared. Deleting twice is not an error.
func (m *Manager) Delete(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Record first, then index entry: a failure in between leaves no
	// dangling metadata pointing at a stored record.
	m.softPersist("delete session", m.store.DeleteSession(ctx, id))

	if i, ok := m.indexOfLocked(id); ok {
		m.index = append(m.index[:i], m.index[i+1:]...)
		m.softPersist("write index", m.store.PutIndex(ctx, m.index))
	}

	if m.active != nil && m.active.ID == id {
		m.active = nil
		m.softPersist("clear active pointer", m.store.PutActiveID(ctx, ""))
		m.publishLocked(Event{Type: EventActivated, ID: ""})
	}

	m.publishLocked(Event{Type: EventDeleted, ID: id})
}

// Switch makes the given session active, loading its full record into the
// in-memory cache.
func (m *Manager) Switch(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.ID == id {
		out := *m.active
		return &out, nil
	}

	meta, ok := m.findLocked(id)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}

	m.active = m.loadLocked(ctx, meta)
	m.softPersist("write active pointer", m.store.PutActiveID(ctx, id))
	m.publishLocked(Event{Type: EventActivated, ID: id})

	out := *m.active
	return &out, nil
}

// Clear drops the active session, leaving no session open.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return
	}
	m.active = nil
	m.softPersist("clear active pointer", m.store.PutActiveID(ctx, ""))
	m.publishLocked(Event{Type: EventActivated, ID: ""})
}

// Get returns a copy of a session by id, or nil if it does not exist. The
// active session is served from the in-memory copy.
func (m *Manager) Get(ctx context.Context, id string) *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active != nil && m.active.ID == id {
		out := *m.active
		return &out
	}
	meta, ok := m.findLocked(id)
	if !ok {
		return nil
	}
	return m.loadLocked(ctx, meta)
}

// ActiveID returns the active session's id, or "" if none is active.
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return ""
	}
	return m.active.ID
}

// Active returns a copy of the active session, or nil.
func (m *Manager) Active() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil
	}
	out := *m.active
	return &out
}

// List returns full session records in index order (most recently created
// first). The active session is served from the in-memory copy so listings
// never show stale data for the session being edited.
func (m *Manager) List(ctx context.Context) []domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Session, 0, len(m.index))
	for _, meta := range m.index {
		if m.active != nil && m.active.ID == meta.ID {
			out = append(out, *m.active)
			continue
		}
		out = append(out, *m.loadLocked(ctx, meta))
	}
	return out
}

// Metadata returns a copy of the index for lightweight listings.
func (m *Manager) Metadata() []domain.SessionMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SessionMetadata, len(m.index))
	copy(out, m.index)
	return out
}

// Subscribe registers a change listener. Events are delivered best-effort:
// a subscriber that stops consuming loses events rather than blocking the
// manager.
func (m *Manager) Subscribe() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, 16)
	m.subs = append(m.subs, ch)
	return ch
}

// Close flushes the index and active pointer one last time.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.softPersist("write index", m.store.PutIndex(ctx, m.index))
	activeID := ""
	if m.active != nil {
		activeID = m.active.ID
	}
	m.softPersist("write active pointer", m.store.PutActiveID(ctx, activeID))
	return nil
}

func (m *Manager) indexOfLocked(id string) (int, bool) {
	for i := range m.index {
		if m.index[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (m *Manager) findLocked(id string) (domain.SessionMetadata, bool) {
	if i, ok := m.indexOfLocked(id); ok {
		return m.index[i], true
	}
	return domain.SessionMetadata{}, false
}

// loadLocked fetches a full record from storage, falling back to a
// metadata-only record when the stored copy is missing or corrupted. The
// index stays authoritative for what sessions exist.
func (m *Manager) loadLocked(ctx context.Context, meta domain.SessionMetadata) *domain.Session {
	sess, err := m.store.GetSession(ctx, meta.ID)
	if err != nil {
		slog.Warn("Loading session record failed", "id", meta.ID, "error", err)
	}
	if sess == nil {
		return &domain.Session{
			ID:        meta.ID,
			Title:     meta.Title,
			CreatedAt: meta.CreatedAt,
			UpdatedAt: meta.UpdatedAt,
			Preview:   meta.Preview,
		}
	}
	return sess
}

func (m *Manager) publishLocked(ev Event) {
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is not consuming fast enough.
		}
	}
}

func (m *Manager) softPersist(op string, err error) {
	if err != nil {
		slog.Warn("Persistence degraded, continuing in memory", "op", op, "error", err)
	}
}

// bump returns the current time, nudged forward when the clock has not
// advanced past prev so updatedAt strictly increases on every mutation.
func bump(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}
