package bridge

import (
	"context"
	"encoding/json"
)

// Command is one instruction for the Blender addon.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// response is the addon's reply envelope.
type response struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Commander executes commands against a Blender instance.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Execute must honor cancellation and deadlines.
// - Errors: a failure Blender reports wraps ErrCommandFailed with the
//   addon's message; transport failures wrap the underlying error.
type Commander interface {
	// Execute round-trips one command and returns the addon's raw
	// result payload.
	Execute(ctx context.Context, cmd Command) (json.RawMessage, error)
}
