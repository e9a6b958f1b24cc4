package pipeline

import "detectdemo/internal/model"

type EventKind int

const (
	// EventState carries the state after a transition.
	EventState EventKind = iota
	// EventAlert is a transient camera notice. It is never stored in the state.
	EventAlert
	// EventResult reports a result that was applied to the state.
	EventResult
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventAlert:
		return "alert"
	case EventResult:
		return "result"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind   EventKind
	State  model.PipelineState
	Alert  string
	Origin model.Origin
	Result *model.DetectionResult
	Source []byte // Image that was sent for inference, set on EventResult
}

// Listener receives events in the order the state changed. Listeners run
// synchronously and must not block or call back into the Controller.
type Listener func(Event)

// Stats are counters since the controller was created.
type Stats struct {
	Dispatched      uint64 `json:"dispatched"`
	Completed       uint64 `json:"completed"`
	Failed          uint64 `json:"failed"`
	Discarded       uint64 `json:"discarded"`
	InFlight        int    `json:"in_flight"`
	SkippedBusy     uint64 `json:"skipped_busy"`
	SkippedNotReady uint64 `json:"skipped_not_ready"`
	SkippedNoFrame  uint64 `json:"skipped_no_frame"`
	SkippedStill    uint64 `json:"skipped_still"`
}
