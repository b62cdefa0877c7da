package bridge

import "errors"

// Sentinel errors for bridge operations.
var (
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("bridge: client is closed")

	// ErrEmptyCommand is returned when a command has no type.
	ErrEmptyCommand = errors.New("bridge: command type is empty")

	// ErrCommandFailed is returned when Blender reports a command error.
	// The addon's message is attached to the wrapping error.
	ErrCommandFailed = errors.New("bridge: command failed")

	// ErrInvalidResponse is returned when the addon's reply does not
	// follow the status envelope.
	ErrInvalidResponse = errors.New("bridge: invalid response from blender")
)
