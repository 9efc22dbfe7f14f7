package eventloop

// State is the orchestration phase of the resident. Exactly one blocking
// capture/solve sequence runs at a time; the phase serializes them.
type State string

const (
	StateIdle      State = "Idle"
	StateCapturing State = "Capturing"
	StateAnalyzing State = "Analyzing"
	StateRefining  State = "Refining"
	StateReady     State = "Ready"
	StateTyping    State = "Typing"
)

// isAllowedTransition encodes the legal phase edges. A forced session reset
// (history defect) bypasses the table through forceIdle; every other state
// change must pass it.
func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateCapturing
	case StateCapturing:
		return to == StateAnalyzing || to == StateIdle
	case StateAnalyzing:
		return to == StateRefining || to == StateReady || to == StateIdle
	case StateRefining:
		return to == StateReady || to == StateTyping
	case StateReady:
		return to == StateCapturing || to == StateRefining || to == StateTyping
	case StateTyping:
		return to == StateReady || to == StateRefining
	}
	return false
}
