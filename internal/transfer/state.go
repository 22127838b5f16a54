package transfer

// State tracks the orchestrator relative to the copy engine.
type State int

const (
	// StateStopped means no copy run is active.
	StateStopped State = iota
	// StateActive means a copy run is underway.
	StateActive
	// StatePaused means a copy run exists but is suspended by admission
	// control.
	StatePaused
	// StateDoNothing is terminal: shutdown has been requested and the loop
	// will not start or resume work.
	StateDoNothing
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateDoNothing:
		return "do-nothing"
	default:
		return "unknown"
	}
}
