// Package worker drains the search request queue.
//
// Loop state graph:
//
//	Idle ──► Dequeuing ──► Processing ──► Idle
//	             │
//	             └──────► BackingOff ──► Idle
//
// Every state may move to Exited, which is terminal.
package worker

// State is a Loop state.
type State string

const (
	StateIdle       State = "idle"
	StateDequeuing  State = "dequeuing"
	StateProcessing State = "processing"
	StateBackingOff State = "backing_off"
	StateExited     State = "exited"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StateIdle:       {StateDequeuing, StateExited},
	StateDequeuing:  {StateProcessing, StateBackingOff, StateExited},
	StateProcessing: {StateIdle, StateExited},
	StateBackingOff: {StateIdle, StateExited},
	// Exited is terminal
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for Exited.
func IsTerminal(s State) bool { return s == StateExited }
