package poller

import "github.com/wzf03/citabridge/observability"

// Poller event types.
const (
	EventExchange observability.EventType = "poller.exchange"
	EventResponse observability.EventType = "poller.response"
	EventRequest  observability.EventType = "poller.request"
	EventFinished observability.EventType = "poller.finished"
	EventAborted  observability.EventType = "poller.aborted"
	EventUnknown  observability.EventType = "poller.unknown_match"
	EventRetry    observability.EventType = "poller.retry"
)
