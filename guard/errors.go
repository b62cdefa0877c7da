package guard

import "errors"

var (
	// ErrNilCommander indicates New was called without a bridge Commander.
	ErrNilCommander = errors.New("guard: commander is nil")

	// ErrEmptyOp indicates a query or mutation with no command type.
	ErrEmptyOp = errors.New("guard: operation type is empty")

	// ErrEmptyScript indicates Script was called with no code.
	ErrEmptyScript = errors.New("guard: script code is empty")
)
