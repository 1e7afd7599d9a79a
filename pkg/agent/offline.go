package agent

import "context"

// Offline is a Connection for local-only operation: pushes are accepted and
// discarded, no updates ever arrive, and Invoke reports that no agent is
// attached. The session manager stays fully usable without a live agent.
type Offline struct {
	updates chan StateUpdate
}

var _ Connection = (*Offline)(nil)

// NewOffline returns a connection that is permanently quiet.
func NewOffline() *Offline {
	return &Offline{updates: make(chan StateUpdate)}
}

func (o *Offline) SetState(ctx context.Context, payload []byte, generation uint64) error {
	return nil
}

func (o *Offline) Updates() <-chan StateUpdate {
	return o.updates
}

func (o *Offline) Invoke(ctx context.Context) error {
	return ErrNotConnected
}

func (o *Offline) Close() error {
	close(o.updates)
	return nil
}
