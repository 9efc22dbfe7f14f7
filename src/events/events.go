package events

import (
	"github.com/SampleBias/capture-coder/src/capture"
	"github.com/SampleBias/capture-coder/src/singleinstance"
	"github.com/SampleBias/capture-coder/src/typer"
)

// Event is the base interface for everything flowing through the control
// queue. All producers (hotkeys, feedback monitor, typing jobs, delegation
// server) post events; only the dispatcher goroutine consumes them.
type Event interface {
	Type() string
}

// Event type constants for logging and dispatch
const (
	TypeCaptureRequested = "CaptureRequested"
	TypeTypeRequested    = "TypeRequested"
	TypeStopTyping       = "StopTyping"
	TypeRefineRequested  = "RefineRequested"
	TypeShowHistory      = "ShowHistory"
	TypeFeedback         = "Feedback"
	TypeTypingFinished   = "TypingFinished"
	TypeSolveDelegated   = "SolveDelegated"
)

// CaptureRequested - a capture hotkey fired or a delegated request arrived
type CaptureRequested struct {
	Mode capture.Mode
}

func (e CaptureRequested) Type() string { return TypeCaptureRequested }

// TypeRequested - emit the latest solution as keystrokes
type TypeRequested struct {
	Mode typer.Mode
}

func (e TypeRequested) Type() string { return TypeTypeRequested }

// StopTyping - halt the active typing job, if any
type StopTyping struct{}

func (e StopTyping) Type() string { return TypeStopTyping }

// RefineRequested - user asked for one manual refinement round
type RefineRequested struct{}

func (e RefineRequested) Type() string { return TypeRefineRequested }

// ShowHistory - render the session history and surface its location
type ShowHistory struct{}

func (e ShowHistory) Type() string { return TypeShowHistory }

// Feedback - the clipboard monitor saw a new fix marker
type Feedback struct {
	Content string
}

func (e Feedback) Type() string { return TypeFeedback }

// TypingFinished - a typing job ended (completed, stopped, or failed).
// JobID identifies which job; stale completions must not change state.
type TypingFinished struct {
	JobID   int
	Emitted int
	Err     error
}

func (e TypingFinished) Type() string { return TypeTypingFinished }

// SolveDelegated - a one-shot client connected and wants a full
// capture/solve cycle; the response travels back over Conn.
type SolveDelegated struct {
	Conn     singleinstance.Conn
	Mode     capture.Mode
	ToStdout bool
}

func (e SolveDelegated) Type() string { return TypeSolveDelegated }
