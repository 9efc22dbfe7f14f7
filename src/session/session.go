package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind labels how an iteration was produced.
type Kind string

const (
	KindInitial      Kind = "initial"
	KindRefinement   Kind = "refinement"
	KindFeedback     Kind = "feedback-applied"
	KindOptimization Kind = "final-optimization"
)

// ErrEmpty is returned when no iteration exists yet.
var ErrEmpty = errors.New("session: history is empty")

// SequenceError reports an append whose sequence number does not extend the
// history by exactly one. It always signals an internal defect, never bad
// user input.
type SequenceError struct {
	Want int
	Got  int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("session: sequence gap: want %d, got %d", e.Want, e.Got)
}

// Iteration is one revision of the solution. Source holds the complete text;
// every revision is full, never a delta.
type Iteration struct {
	Seq       int
	Source    string
	Kind      Kind
	CreatedAt time.Time
}

// History is the append-only record of solution iterations for the current
// problem. It is not safe for concurrent use; the event loop owns it and must
// be the only goroutine touching it.
type History struct {
	id    string
	items []Iteration
}

func NewHistory() *History {
	return &History{id: uuid.NewString()}
}

// ID identifies the current problem session. Reset renews it.
func (h *History) ID() string { return h.id }

func (h *History) Len() int { return len(h.items) }

// NextSeq returns the sequence number the next append must carry. Numbering
// starts at 0 and restarts at 0 after Reset.
func (h *History) NextSeq() int { return len(h.items) }

// Append adds an iteration. Its Seq must be exactly one past the latest;
// otherwise the history is left untouched and a *SequenceError is returned.
func (h *History) Append(it Iteration) error {
	want := h.NextSeq()
	if it.Seq != want {
		return &SequenceError{Want: want, Got: it.Seq}
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	h.items = append(h.items, it)
	return nil
}

// Current returns the latest iteration.
func (h *History) Current() (Iteration, error) {
	if len(h.items) == 0 {
		return Iteration{}, ErrEmpty
	}
	return h.items[len(h.items)-1], nil
}

// All returns a copy of every iteration in order.
func (h *History) All() []Iteration {
	out := make([]Iteration, len(h.items))
	copy(out, h.items)
	return out
}

// Reset drops all iterations and starts a fresh session id.
func (h *History) Reset() {
	h.items = nil
	h.id = uuid.NewString()
}
