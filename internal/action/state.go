package action

// State is the execution state of a phased action.
type State int32

const (
	// Created means the action has never been dispatched.
	Created State = iota
	// Running means a phase body is currently executing.
	Running
	// WaitForNextPhase means the last phase returned but the action wants
	// another dispatch. Terminal for the dispatch, not for the action.
	WaitForNextPhase
	// Complete means the action finished without error.
	Complete
	// CompleteWithError means a phase body failed. Never retried.
	CompleteWithError
)

// Terminal reports whether the action will receive no further phases.
func (s State) Terminal() bool {
	return s == Complete || s == CompleteWithError
}

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case WaitForNextPhase:
		return "wait_for_next_phase"
	case Complete:
		return "complete"
	case CompleteWithError:
		return "complete_with_error"
	default:
		return "unknown"
	}
}
