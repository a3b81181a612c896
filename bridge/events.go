package bridge

import "github.com/wzf03/citabridge/observability"

// Bridge event types emitted by the polling loop.
const (
	EventRunStart      observability.EventType = "bridge.run.start"
	EventCycleStart    observability.EventType = "bridge.cycle.start"
	EventCycleComplete observability.EventType = "bridge.cycle.complete"
	EventError         observability.EventType = "bridge.error"
)
