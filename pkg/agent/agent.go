// Package agent defines the capability the sync controller consumes from the
// live research-agent connection: replace its state wholesale, receive
// asynchronous state-change notifications, and trigger a run.
package agent

import "context"

// StateUpdate is one state-change notification from the agent connection.
// Generation echoes the generation tag of the last state pushed into the
// connection; the controller uses it to discard notifications that belong to
// a superseded session switch.
type StateUpdate struct {
	Generation uint64 `json:"generation"`
	Payload    []byte `json:"state"`
}

// Connection is a live link to an external agent process.
type Connection interface {
	// SetState replaces the connection's state wholesale with the given
	// serialized payload, tagged with the controller's current generation.
	SetState(ctx context.Context, payload []byte, generation uint64) error

	// Updates returns the channel of asynchronous state-change
	// notifications. The channel is closed when the connection dies.
	Updates() <-chan StateUpdate

	// Invoke asks the agent to begin or resume processing its current state.
	Invoke(ctx context.Context) error

	// Close tears down the connection.
	Close() error
}
