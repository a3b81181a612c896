package poller

import "errors"

// Sentinel errors for polling operations.
var (
	// ErrTransport reports a failed exchange that is safe to retry: connection
	// errors, timeouts, 5xx, 408 and 429 responses.
	ErrTransport = errors.New("transport error")
	// ErrRejected reports a response status retrying cannot fix.
	ErrRejected = errors.New("request rejected")
	// ErrMalformedPayload reports a response body that does not follow the
	// long-poll format.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrPendingWork reports a failed exchange that Poll stopped retrying
	// because sessions are still waiting on a move. It wraps the ErrTransport
	// cause.
	ErrPendingWork = errors.New("exchange failed with moves outstanding")
	// ErrNoURL reports a poller configured without an endpoint.
	ErrNoURL = errors.New("no platform url configured")
)
