package typer

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-vgo/robotgo"
)

// Mode selects the pacing profile for a typing job.
type Mode string

const (
	ModeNatural Mode = "natural"
	ModeFast    Mode = "fast"
)

// Delays configures pacing. Natural mode jitters around its base and slows
// down after line breaks and structural tokens; fast mode is a flat delay.
type Delays struct {
	NaturalBase   time.Duration
	NaturalJitter time.Duration
	Fast          time.Duration
}

func (d Delays) delayFor(r rune, m Mode) time.Duration {
	if m == ModeFast {
		return d.Fast
	}
	base := d.NaturalBase
	if d.NaturalJitter > 0 {
		base += rand.N(2*d.NaturalJitter+1) - d.NaturalJitter
	}
	switch r {
	case '\n':
		base *= 4
	case '{', '}', '(', ')', '[', ']', ';', ':':
		base += base / 2
	}
	if base < 0 {
		base = 0
	}
	return base
}

type job struct {
	id     int
	cancel atomic.Bool
	done   chan struct{}
}

// Emitter types text into whatever window holds focus. At most one job emits
// at a time: starting a new job cancels its predecessor and the new job waits
// for the old one to drain before its first character, so output never
// interleaves. The cancellation flag is checked between characters, which
// bounds stop latency by one delay plus one keystroke.
type Emitter struct {
	// Send and Delay are seams: production wiring installs robotgo
	// keystrokes and Delays pacing. OnDone runs on the job goroutine.
	Send   func(r rune) error
	Delay  func(r rune, m Mode) time.Duration
	OnDone func(id int, emitted int, err error)

	mu     sync.Mutex
	nextID int
	active *job
}

// NewEmitter builds the production emitter.
func NewEmitter(d Delays, onDone func(id, emitted int, err error)) *Emitter {
	return &Emitter{
		Send:   sendKeystroke,
		Delay:  d.delayFor,
		OnDone: onDone,
	}
}

// Start begins emitting text and returns the new job's id. It never blocks:
// any active job is flagged to cancel and the new job's goroutine waits for
// it to finish before emitting.
func (e *Emitter) Start(text string, mode Mode) int {
	e.mu.Lock()
	prev := e.active
	if prev != nil {
		prev.cancel.Store(true)
	}
	e.nextID++
	j := &job{id: e.nextID, done: make(chan struct{})}
	e.active = j
	e.mu.Unlock()

	go e.run(j, prev, text, mode)
	return j.id
}

// Stop flags the active job to halt. The job ends before its next character.
func (e *Emitter) Stop() {
	e.mu.Lock()
	if e.active != nil {
		e.active.cancel.Store(true)
	}
	e.mu.Unlock()
}

func (e *Emitter) run(j *job, prev *job, text string, mode Mode) {
	defer close(j.done)
	if prev != nil {
		<-prev.done
	}

	emitted := 0
	var err error
	for _, r := range text {
		if j.cancel.Load() {
			break
		}
		if err = e.Send(r); err != nil {
			break
		}
		emitted++
		if d := e.Delay(r, mode); d > 0 {
			time.Sleep(d)
		}
	}

	e.mu.Lock()
	if e.active == j {
		e.active = nil
	}
	e.mu.Unlock()

	if e.OnDone != nil {
		e.OnDone(j.id, emitted, err)
	}
}

func sendKeystroke(r rune) error {
	switch r {
	case '\n':
		return robotgo.KeyTap("enter")
	case '\t':
		return robotgo.KeyTap("tab")
	default:
		robotgo.TypeStr(string(r))
		return nil
	}
}
