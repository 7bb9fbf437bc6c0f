package session

import "github.com/GriffinCanCode/comfybridge/internal/status"

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateExporting
	StatePending
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExporting:
		return "exporting"
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a job is in flight.
func (s State) Active() bool {
	return s == StateExporting || s == StatePending || s == StateStreaming
}

// Terminal reports whether the job has ended and awaits reset.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Status projects the state onto the coarse status file value.
func (s State) Status() string {
	if s.Active() {
		return status.Running
	}
	return status.Idle
}
