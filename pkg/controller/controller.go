// Package controller keeps the locally active session and the live agent
// connection consistent: it pushes stored state into the connection on every
// session switch and persists agent-originated state changes back through the
// session manager, without feedback loops or cross-session bleed.
package controller

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ana-research/canvas/pkg/agent"
	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/session"
)

type cmdKind int

const (
	// cmdCreate creates a session, which becomes active, then pushes.
	cmdCreate cmdKind = iota
	// cmdActivate switches the active session to a specific id, then pushes.
	cmdActivate
	// cmdClear drops the active session, then pushes an empty state.
	cmdClear
	// cmdDelete removes a session; pushes only if it was the active one.
	cmdDelete
)

type command struct {
	kind    cmdKind
	id      string
	title   string
	created chan *domain.Session
	reply   chan error
}

// Controller is the bidirectional sync controller. All push/pull mediation
// runs on a single event loop (Start), so command handling and agent updates
// are totally ordered. Each push increments a generation counter; updates
// tagged with a superseded generation are discarded, which replaces any
// timer-based settling window.
type Controller struct {
	sessions *session.Manager
	conn     agent.Connection
	cmds     chan command

	// Owned by the event loop.
	gen      uint64
	lastPush string
}

// New wires a controller over the session manager and agent connection.
func New(sessions *session.Manager, conn agent.Connection) *Controller {
	return &Controller{
		sessions: sessions,
		conn:     conn,
		cmds:     make(chan command, 16),
	}
}

// Start runs the sync loop until ctx is cancelled. The restored active
// session (or an empty state) is pushed once at startup so the agent
// connection never carries a previous process's state.
func (c *Controller) Start(ctx context.Context) error {
	c.push(ctx)

	updates := c.conn.Updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.cmds:
			c.handleCommand(ctx, cmd)
		case upd, ok := <-updates:
			if !ok {
				// Connection died; keep serving local operations.
				slog.Warn("Agent connection closed, continuing local-only")
				updates = nil
				continue
			}
			c.handleUpdate(ctx, upd)
		}
	}
}

// --- UI-facing operations ---

// CreateSession creates a session, which becomes active, and pushes its empty
// state to the agent. The creation runs on the event loop so activation and
// the generation bump are atomic with respect to update handling: an update
// already queued for the previous session can never land in the new one.
func (c *Controller) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	created := make(chan *domain.Session, 1)
	if err := c.do(ctx, command{kind: cmdCreate, title: title, created: created}); err != nil {
		return nil, err
	}
	return <-created, nil
}

// SwitchSession makes the given session active and pushes its stored state,
// fully replacing whatever the agent connection held.
func (c *Controller) SwitchSession(ctx context.Context, id string) error {
	return c.do(ctx, command{kind: cmdActivate, id: id})
}

// ClearActiveSession leaves no session open and pushes an empty state.
func (c *Controller) ClearActiveSession(ctx context.Context) error {
	return c.do(ctx, command{kind: cmdClear})
}

// DeleteSession removes a session. If it was active, the cleared state is
// pushed so the agent is not left holding a deleted session's state.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, command{kind: cmdDelete, id: id})
}

// RenameSession retitles a session. Titles are local display state and are
// not pushed to the agent.
func (c *Controller) RenameSession(ctx context.Context, id, title string) {
	c.sessions.Rename(ctx, id, title)
}

// ListSessions returns full session records, most recently created first.
func (c *Controller) ListSessions(ctx context.Context) []domain.Session {
	return c.sessions.List(ctx)
}

// GetSession returns a single session record, or nil if it does not exist.
func (c *Controller) GetSession(ctx context.Context, id string) *domain.Session {
	return c.sessions.Get(ctx, id)
}

// Subscribe registers a listener for session change events.
func (c *Controller) Subscribe() <-chan session.Event {
	return c.sessions.Subscribe()
}

// ActiveSession returns a copy of the active session, or nil.
func (c *Controller) ActiveSession() *domain.Session {
	return c.sessions.Active()
}

// ActiveSessionID returns the active session's id, or "".
func (c *Controller) ActiveSessionID() string {
	return c.sessions.ActiveID()
}

// Invoke triggers an agent run over the currently pushed state.
func (c *Controller) Invoke(ctx context.Context) error {
	return c.conn.Invoke(ctx)
}

func (c *Controller) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- event loop ---

// handleCommand applies queued commands in request order but pushes at most
// once, for the most recently requested one: a switch issued while another is
// pending supersedes it cleanly.
func (c *Controller) handleCommand(ctx context.Context, cmd command) {
	needPush := false
	for {
		push, err := c.applyLocal(ctx, cmd)
		needPush = needPush || push

		select {
		case next := <-c.cmds:
			cmd.reply <- err
			cmd = next
			continue
		default:
		}

		if needPush {
			c.push(ctx)
		}
		cmd.reply <- err
		return
	}
}

func (c *Controller) applyLocal(ctx context.Context, cmd command) (bool, error) {
	switch cmd.kind {
	case cmdCreate:
		cmd.created <- c.sessions.Create(ctx, cmd.title)
		return true, nil
	case cmdActivate:
		if c.sessions.ActiveID() == cmd.id {
			return true, nil
		}
		if _, err := c.sessions.Switch(ctx, cmd.id); err != nil {
			return false, err
		}
		return true, nil
	case cmdClear:
		c.sessions.Clear(ctx)
		return true, nil
	case cmdDelete:
		wasActive := c.sessions.ActiveID() == cmd.id
		c.sessions.Delete(ctx, cmd.id)
		return wasActive, nil
	}
	return false, nil
}

// push replaces the agent connection's state with the active session's state
// (or an empty state when none is active) under a fresh generation. Transport
// failure is soft: local state is authoritative and the push is retried on
// the next switch or user action, never in the background.
func (c *Controller) push(ctx context.Context) {
	c.gen++

	var st domain.ResearchState
	if active := c.sessions.Active(); active != nil {
		st = active.State
	}

	payload, err := json.Marshal(st)
	if err != nil {
		slog.Error("Marshalling state for push failed", "error", err)
		return
	}
	c.lastPush = string(payload)

	if err := c.conn.SetState(ctx, payload, c.gen); err != nil {
		slog.Warn("Pushing state to agent failed, continuing local-only",
			"generation", c.gen, "error", err)
	}
}

// handleUpdate persists an agent-originated state change into the active
// session. Updates from superseded generations, echoes of our own pushes, and
// malformed payloads are discarded.
func (c *Controller) handleUpdate(ctx context.Context, upd agent.StateUpdate) {
	if upd.Generation != c.gen {
		slog.Debug("Discarding stale agent update",
			"generation", upd.Generation, "current", c.gen)
		return
	}
	if len(upd.Payload) == 0 {
		slog.Warn("Discarding empty agent state update")
		return
	}

	var st domain.ResearchState
	if err := json.Unmarshal(upd.Payload, &st); err != nil {
		slog.Warn("Discarding malformed agent state", "error", err)
		return
	}

	canonical, err := json.Marshal(st)
	if err != nil {
		slog.Warn("Discarding unencodable agent state", "error", err)
		return
	}
	if string(canonical) == c.lastPush {
		// Echo of our own push, not a genuine agent change.
		return
	}

	id := c.sessions.ActiveID()
	if id == "" {
		return
	}
	c.sessions.Update(ctx, id, st)
}
