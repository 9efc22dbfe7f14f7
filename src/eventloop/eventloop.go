package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SampleBias/capture-coder/src/capture"
	"github.com/SampleBias/capture-coder/src/clipboard"
	"github.com/SampleBias/capture-coder/src/config"
	"github.com/SampleBias/capture-coder/src/events"
	"github.com/SampleBias/capture-coder/src/llm"
	"github.com/SampleBias/capture-coder/src/logutil"
	"github.com/SampleBias/capture-coder/src/notification"
	"github.com/SampleBias/capture-coder/src/overlay"
	"github.com/SampleBias/capture-coder/src/prompts"
	"github.com/SampleBias/capture-coder/src/refine"
	"github.com/SampleBias/capture-coder/src/report"
	"github.com/SampleBias/capture-coder/src/session"
	"github.com/SampleBias/capture-coder/src/singleinstance"
	"github.com/SampleBias/capture-coder/src/tray"
	"github.com/SampleBias/capture-coder/src/typer"
)

// Deep enough that a full queue means the dispatcher has been wedged for a
// long time, not a burst of hotkeys during one model call.
const eventQueueDepth = 256

// Loop is the single-threaded coordinator. The phase, the solution history
// and the active typing job are owned by the dispatcher goroutine; hotkeys,
// the feedback monitor, typing completions and delegated one-shot clients
// all talk to it by posting events, consumed strictly in arrival order.
type Loop struct {
	Provider *capture.Provider
	Pipeline *refine.Pipeline
	Emitter  *typer.Emitter

	// Notify, NotifyError, Tooltip, WriteClipboard and WriteReport are
	// seams; New installs toasts, the tray and the real clipboard.
	Notify         func(title, message string)
	NotifyError    func(title, message string)
	Tooltip        func(text string)
	WriteClipboard func(text string) error
	WriteReport    func(dir, sessionID string, iterations []session.Iteration) (string, error)

	history   *session.History
	ch        chan events.Event
	pending   []events.Event
	state     State
	activeJob int
}

// New builds the production loop from configuration.
func New(cfg *config.Config) *Loop {
	l := &Loop{
		Notify:         notification.Show,
		NotifyError:    notification.ShowError,
		Tooltip:        tray.UpdateTooltip,
		WriteClipboard: clipboard.Write,
		WriteReport:    report.Write,
		history:        session.NewHistory(),
		ch:             make(chan events.Event, eventQueueDepth),
		state:          StateIdle,
	}

	set := prompts.Resolve(cfg.PromptSystem, cfg.PromptInitial, cfg.PromptRefine, cfg.PromptOptimize, cfg.PromptFeedback)
	l.Provider = capture.NewProvider(overlay.New(cfg.CaptureRect, cfg.CaptureDisplay), cfg.CaptureDisplay)
	l.Pipeline = refine.New(cfg.RefineRounds, time.Duration(cfg.RequestTimeoutSec)*time.Second, set)
	l.Emitter = typer.NewEmitter(typer.Delays{
		NaturalBase:   time.Duration(cfg.TypeNaturalDelayMS) * time.Millisecond,
		NaturalJitter: time.Duration(cfg.TypeNaturalJitterMS) * time.Millisecond,
		Fast:          time.Duration(cfg.TypeFastDelayMS) * time.Millisecond,
	}, func(id, emitted int, err error) {
		l.Post(events.TypingFinished{JobID: id, Emitted: emitted, Err: err})
	})
	return l
}

// Post queues an event for the dispatcher. It never blocks: when the queue
// is full the event is dropped with a log line.
func (l *Loop) Post(ev events.Event) bool {
	select {
	case l.ch <- ev:
		return true
	default:
		log.Printf("ERROR: eventloop: queue full, dropping %s", ev.Type())
		return false
	}
}

// Run dispatches events until ctx ends. It must be the only goroutine
// calling the handlers.
func (l *Loop) Run(ctx context.Context) error {
	l.Tooltip(l.tooltipText())
	for {
		if len(l.pending) > 0 {
			ev := l.pending[0]
			l.pending = l.pending[1:]
			l.dispatch(ctx, ev)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-l.ch:
			l.dispatch(ctx, ev)
		}
	}
}

// ServeDelegation pumps accepted one-shot connections into the event queue.
// Runs until ctx ends or the server closes.
func (l *Loop) ServeDelegation(ctx context.Context, srv singleinstance.Server) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		req := conn.Request()
		mode, err := capture.ParseMode(req.Mode)
		if err != nil {
			_ = conn.RespondError("unknown capture mode")
			_ = conn.Close()
			continue
		}
		if !l.Post(events.SolveDelegated{Conn: conn, Mode: mode, ToStdout: req.OutputToStdout}) {
			_ = conn.RespondError("busy, please retry")
			_ = conn.Close()
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, ev events.Event) {
	log.Printf("eventloop: %s in state %s", ev.Type(), l.state)
	switch e := ev.(type) {
	case events.CaptureRequested:
		l.handleCapture(ctx, e)
	case events.TypeRequested:
		l.handleType(e)
	case events.StopTyping:
		l.handleStop()
	case events.RefineRequested:
		l.handleRefine(ctx)
	case events.Feedback:
		l.handleFeedback(ctx, e)
	case events.TypingFinished:
		l.handleTypingFinished(e)
	case events.ShowHistory:
		l.handleShowHistory()
	case events.SolveDelegated:
		l.handleDelegated(ctx, e)
	default:
		log.Printf("ERROR: eventloop: unhandled event %T", ev)
	}
}

// handleCapture runs the full blocking capture/analyze/refine sequence for a
// capture chord. Chords landing outside Idle/Ready are dropped, never queued.
func (l *Loop) handleCapture(ctx context.Context, e events.CaptureRequested) {
	if l.state != StateIdle && l.state != StateReady {
		log.Printf("eventloop: capture chord ignored in state %s", l.state)
		return
	}
	if err := l.runProblem(ctx, e.Mode); err != nil {
		l.surface(err)
	} else {
		l.Notify("Solution ready", fmt.Sprintf("%d iterations", l.history.Len()))
	}
	l.drainStaleCaptures()
}

// runProblem drives one capture through the automatic rounds, moving phase
// and history. On success the loop is Ready and the history holds the new
// session; on failure the phase is already restored per the failure rules
// and the first error is returned.
func (l *Loop) runProblem(ctx context.Context, mode capture.Mode) error {
	l.to(StateCapturing)
	img, err := l.Provider.Capture(ctx, capture.Request{Mode: mode})
	if err != nil {
		l.to(StateIdle)
		return err
	}

	l.history.Reset()
	log.Printf("eventloop: new session %s (capture %s, %d bytes)", l.history.ID(), mode, len(img.PNG))

	l.to(StateAnalyzing)
	if err := l.Pipeline.Initial(ctx, l.history, img.PNG); err != nil {
		if l.sequenceDefect(err) {
			return err
		}
		// no usable iteration exists yet
		l.to(StateIdle)
		return err
	}

	if l.Pipeline.Rounds > 0 {
		l.to(StateRefining)
		for round := 1; round <= l.Pipeline.Rounds; round++ {
			if err := l.Pipeline.AutoRound(ctx, l.history, round); err != nil {
				if l.sequenceDefect(err) {
					return err
				}
				// completed iterations stand; remaining rounds are abandoned
				l.to(StateReady)
				return err
			}
		}
	}
	l.to(StateReady)
	return nil
}

func (l *Loop) handleType(e events.TypeRequested) {
	if l.state != StateReady && l.state != StateTyping {
		log.Printf("eventloop: type request ignored in state %s", l.state)
		return
	}
	cur, err := l.history.Current()
	if err != nil {
		log.Printf("ERROR: eventloop: %s with empty history: %v", l.state, err)
		return
	}
	l.activeJob = l.Emitter.Start(cur.Source, e.Mode)
	log.Printf("eventloop: typing job %d started (%s, iteration %d)", l.activeJob, e.Mode, cur.Seq)
	if l.state != StateTyping {
		l.to(StateTyping)
	}
}

func (l *Loop) handleStop() {
	if l.state != StateTyping {
		log.Printf("eventloop: stop chord ignored in state %s", l.state)
		return
	}
	l.Emitter.Stop()
	l.activeJob = 0
	l.to(StateReady)
}

func (l *Loop) handleTypingFinished(e events.TypingFinished) {
	if e.JobID != l.activeJob {
		log.Printf("eventloop: stale completion for typing job %d", e.JobID)
		return
	}
	l.activeJob = 0
	if e.Err != nil {
		log.Printf("ERROR: eventloop: typing job %d aborted after %d chars: %v", e.JobID, e.Emitted, e.Err)
		l.Notify("Typing stopped", "Keystroke injection failed")
	} else {
		log.Printf("eventloop: typing job %d finished (%d chars)", e.JobID, e.Emitted)
	}
	if l.state == StateTyping {
		l.to(StateReady)
	}
}

func (l *Loop) handleRefine(ctx context.Context) {
	if l.state != StateReady && l.state != StateTyping {
		log.Printf("eventloop: refine chord ignored in state %s", l.state)
		return
	}
	prior := l.state
	l.to(StateRefining)
	if err := l.Pipeline.ManualRefine(ctx, l.history); err != nil {
		if !l.sequenceDefect(err) {
			l.to(l.afterRound(prior))
			l.surface(err)
		}
		l.drainStaleCaptures()
		return
	}
	l.to(l.afterRound(prior))
	cur, _ := l.history.Current()
	l.Notify("Solution refined", fmt.Sprintf("Iteration %d ready", cur.Seq))
	l.drainStaleCaptures()
}

func (l *Loop) handleFeedback(ctx context.Context, e events.Feedback) {
	if l.state != StateReady && l.state != StateTyping {
		log.Printf("eventloop: feedback ignored in state %s (%s)", l.state, logutil.Snippet(e.Content, 40))
		return
	}
	prior := l.state
	l.to(StateRefining)
	if err := l.Pipeline.ApplyFeedback(ctx, l.history, e.Content); err != nil {
		if !l.sequenceDefect(err) {
			l.to(l.afterRound(prior))
			l.surface(err)
		}
		l.drainStaleCaptures()
		return
	}
	l.to(l.afterRound(prior))
	l.Notify("Feedback applied", logutil.Snippet(e.Content, 60))
	l.drainStaleCaptures()
}

func (l *Loop) handleShowHistory() {
	if l.history.Len() == 0 {
		l.Notify("History", "No solutions yet")
		return
	}
	path, err := l.WriteReport("", l.history.ID(), l.history.All())
	if err != nil {
		log.Printf("ERROR: eventloop: history page: %v", err)
		l.NotifyError("History", "Could not write the history page")
		return
	}
	l.Notify("History", path)
}

// handleDelegated serves a one-shot client through the same machinery as a
// capture chord; the result travels back over the connection instead of a
// toast. A busy resident answers with an error rather than queueing.
func (l *Loop) handleDelegated(ctx context.Context, e events.SolveDelegated) {
	defer e.Conn.Close()
	if l.state != StateIdle && l.state != StateReady {
		log.Printf("eventloop: delegated solve rejected in state %s", l.state)
		_ = e.Conn.RespondError("busy, please retry")
		return
	}
	if err := l.runProblem(ctx, e.Mode); err != nil {
		_ = e.Conn.RespondError(err.Error())
		l.drainStaleCaptures()
		return
	}
	cur, err := l.history.Current()
	if err != nil {
		_ = e.Conn.RespondError("no solution produced")
		l.drainStaleCaptures()
		return
	}
	if e.ToStdout {
		_ = e.Conn.RespondSuccess(cur.Source)
	} else if err := l.WriteClipboard(cur.Source); err != nil {
		_ = e.Conn.RespondError("clipboard write failed: " + err.Error())
	} else {
		_ = e.Conn.RespondSuccess("")
	}
	l.drainStaleCaptures()
}

// drainStaleCaptures removes capture chords that queued up while the
// dispatcher was blocked on a capture/solve sequence. Capture requests are
// never replayed late; every other event type stays queued in arrival order.
func (l *Loop) drainStaleCaptures() {
	for {
		select {
		case ev := <-l.ch:
			if ev.Type() == events.TypeCaptureRequested {
				log.Printf("eventloop: dropping capture chord queued while busy")
				continue
			}
			l.pending = append(l.pending, ev)
		default:
			return
		}
	}
}

// afterRound picks the state to restore once a manual refine or feedback
// round finishes: back to Typing while the job is still live, else Ready.
func (l *Loop) afterRound(prior State) State {
	if prior == StateTyping && l.activeJob != 0 {
		return StateTyping
	}
	return StateReady
}

// sequenceDefect handles a history invariant violation: the session is
// unrecoverable, so stop typing, reset, and force Idle. Reports whether err
// was one.
func (l *Loop) sequenceDefect(err error) bool {
	var seqErr *session.SequenceError
	if !errors.As(err, &seqErr) {
		return false
	}
	log.Printf("ERROR: eventloop: history defect, resetting session: %v", seqErr)
	l.NotifyError("Internal error", "Solution history corrupted; session was reset")
	l.Emitter.Stop()
	l.activeJob = 0
	l.history.Reset()
	l.forceIdle()
	return true
}

// surface reports a failed capture or solve to the user. Sequence defects
// are surfaced at the defect site, a cancelled selection is not worth a
// toast.
func (l *Loop) surface(err error) {
	var seqErr *session.SequenceError
	if errors.As(err, &seqErr) {
		return
	}
	if errors.Is(err, capture.ErrSelectionCancelled) {
		log.Printf("eventloop: selection cancelled")
		return
	}
	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) {
		log.Printf("ERROR: eventloop: service failure: %v", err)
		l.NotifyError("Solve failed", svcErr.Message)
		return
	}
	log.Printf("eventloop: capture failed: %v", err)
	l.Notify("Capture failed", err.Error())
}

func (l *Loop) to(next State) {
	if !isAllowedTransition(l.state, next) {
		log.Printf("ERROR: eventloop: disallowed transition %s -> %s", l.state, next)
	}
	l.setState(next)
}

func (l *Loop) forceIdle() { l.setState(StateIdle) }

func (l *Loop) setState(next State) {
	l.state = next
	l.Tooltip(l.tooltipText())
}

func (l *Loop) tooltipText() string {
	switch l.state {
	case StateCapturing:
		return "Capture Coder: capturing..."
	case StateAnalyzing:
		return "Capture Coder: analyzing..."
	case StateRefining:
		return "Capture Coder: refining..."
	case StateReady:
		return fmt.Sprintf("Capture Coder: ready (%d iterations)", l.history.Len())
	case StateTyping:
		return "Capture Coder: typing..."
	}
	return "Capture Coder"
}
