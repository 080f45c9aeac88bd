package download

// validTransitions defines allowed state transitions.
// Key is the "from" state, value is list of valid "to" states.
var validTransitions = map[State][]State{
	StatePending:     {StateDownloading, StateResuming, StateCompleted, StateFailed},
	StateDownloading: {StateResuming, StateCompleted, StateFailed},
	StateResuming:    {StateDownloading, StateCompleted, StateFailed},
	StateCompleted:   {},             // terminal
	StateFailed:      {StatePending}, // allow retry
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s State) CanTransitionTo(target State) bool {
	for _, v := range validTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true once a progress record must no longer change.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}
