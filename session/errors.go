package session

import "errors"

// Sentinel errors for session and registry operations.
var (
	// ErrProtocolViolation reports a state transition the platform protocol
	// never produces, such as a second request before the first is answered.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrUnknownMatch reports a lookup of a match that was never seen or has
	// already been removed.
	ErrUnknownMatch = errors.New("unknown match")
	// ErrMalformedRequest reports a request line the codec cannot decode.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnknownCodec reports a codec name with no registered implementation.
	ErrUnknownCodec = errors.New("unknown codec")
)
