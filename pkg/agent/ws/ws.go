// Package ws implements agent.Connection over a websocket to the research
// agent's state endpoint. Frames are JSON; pushed states carry a generation
// tag that the agent echoes back on every notification derived from them.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ana-research/canvas/pkg/agent"
)

const (
	frameSetState = "set_state"
	frameInvoke   = "invoke"
	frameState    = "state"

	writeTimeout = 10 * time.Second
)

type frame struct {
	Type       string          `json:"type"`
	Generation uint64          `json:"generation,omitempty"`
	State      json.RawMessage `json:"state,omitempty"`
}

// Client is a websocket-backed agent connection.
type Client struct {
	conn    *websocket.Conn
	updates chan agent.StateUpdate

	writeMu sync.Mutex
	closed  bool
}

var _ agent.Connection = (*Client)(nil)

// Dial connects to the agent's websocket endpoint and starts the read pump.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}

	c := &Client{
		conn:    conn,
		updates: make(chan agent.StateUpdate, 64),
	}
	go c.readPump()
	return c, nil
}

func (c *Client) readPump() {
	defer close(c.updates)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("Agent websocket read error", "error", err)
			}
			return
		}
		if f.Type != frameState {
			continue
		}
		select {
		case c.updates <- agent.StateUpdate{Generation: f.Generation, Payload: f.State}:
		default:
			// Drop if the controller is not consuming fast enough.
			slog.Warn("Dropping agent state update, controller backlogged")
		}
	}
}

func (c *Client) write(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return agent.ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(f)
}

func (c *Client) SetState(ctx context.Context, payload []byte, generation uint64) error {
	if err := c.write(frame{Type: frameSetState, Generation: generation, State: payload}); err != nil {
		return fmt.Errorf("push state: %w", err)
	}
	return nil
}

func (c *Client) Invoke(ctx context.Context) error {
	if err := c.write(frame{Type: frameInvoke}); err != nil {
		return fmt.Errorf("invoke agent: %w", err)
	}
	return nil
}

func (c *Client) Updates() <-chan agent.StateUpdate {
	return c.updates
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return nil
	}
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
