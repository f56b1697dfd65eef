// ABOUTME: Session states and observer events
// ABOUTME: Defines the lifecycle enum and the event delivered to observers
package render

// State is the lifecycle position of a session
type State int32

const (
	Idle State = iota
	Rendering
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// EventKind identifies an observer event
type EventKind int

const (
	EventProgress EventKind = iota
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is delivered to the observer after each block and once at the end
type Event struct {
	Kind EventKind

	// Progress is the session progress when the event was emitted
	Progress float64

	// Frames is the number of frames written so far
	Frames int64

	// Err is set on EventFailed
	Err error
}
