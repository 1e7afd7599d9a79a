package agent

import "errors"

// ErrNotConnected indicates no live agent connection is available. Callers
// continue in local-only mode.
var ErrNotConnected = errors.New("agent not connected")
