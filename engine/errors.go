package engine

import "errors"

// Sentinel errors for engine invocations.
var (
	// ErrEngineFailure reports an engine process that could not be started,
	// exited abnormally, timed out, or printed something other than a move.
	ErrEngineFailure = errors.New("engine failure")
	// ErrNoEngine reports a bridge configured without an engine path.
	ErrNoEngine = errors.New("no engine path configured")
)
