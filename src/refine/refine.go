package refine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SampleBias/capture-coder/src/llm"
	"github.com/SampleBias/capture-coder/src/logutil"
	"github.com/SampleBias/capture-coder/src/prompts"
	"github.com/SampleBias/capture-coder/src/session"
)

// Pipeline turns captures and notes into history iterations, one blocking
// model call per round. Generate is a seam; production wiring installs
// llm.Generate.
type Pipeline struct {
	Generate func(ctx context.Context, req llm.Request) (string, error)
	Prompts  prompts.Set
	Rounds   int           // automatic rounds after the initial analysis
	Timeout  time.Duration // per-call deadline, 0 disables
}

func New(rounds int, timeout time.Duration, p prompts.Set) *Pipeline {
	return &Pipeline{
		Generate: llm.Generate,
		Prompts:  p,
		Rounds:   rounds,
		Timeout:  timeout,
	}
}

// Initial analyzes a freshly captured problem image and appends the first
// solution. The history must already be reset for the new problem.
func (p *Pipeline) Initial(ctx context.Context, h *session.History, png []byte) error {
	text, err := p.call(ctx, llm.Request{
		System:      p.Prompts.System,
		Instruction: p.Prompts.Initial,
		ImagePNG:    png,
	})
	if err != nil {
		return fmt.Errorf("initial analysis: %w", err)
	}
	log.Printf("Initial solution: %d chars (%s)", len(text), logutil.Snippet(text, 60))
	return p.append(h, text, session.KindInitial)
}

// AutoRound runs automatic round n of p.Rounds. The last round uses the
// optimization template and kind; earlier rounds refine.
func (p *Pipeline) AutoRound(ctx context.Context, h *session.History, round int) error {
	instruction := p.Prompts.Refine
	kind := session.KindRefinement
	if round >= p.Rounds {
		instruction = p.Prompts.Optimize
		kind = session.KindOptimization
	}

	text, err := p.call(ctx, llm.Request{
		System:      p.Prompts.System,
		Instruction: instruction,
		History:     sources(h),
	})
	if err != nil {
		return fmt.Errorf("auto round %d/%d: %w", round, p.Rounds, err)
	}
	log.Printf("Auto round %d/%d: %d chars", round, p.Rounds, len(text))
	return p.append(h, text, kind)
}

// ManualRefine runs one user-requested improvement round over the latest
// solution.
func (p *Pipeline) ManualRefine(ctx context.Context, h *session.History) error {
	if h.Len() == 0 {
		return session.ErrEmpty
	}
	text, err := p.call(ctx, llm.Request{
		System:      p.Prompts.System,
		Instruction: p.Prompts.Refine,
		History:     sources(h),
	})
	if err != nil {
		return fmt.Errorf("manual refine: %w", err)
	}
	log.Printf("Manual refine: %d chars", len(text))
	return p.append(h, text, session.KindRefinement)
}

// ApplyFeedback folds a reviewer note into a new iteration.
func (p *Pipeline) ApplyFeedback(ctx context.Context, h *session.History, note string) error {
	if h.Len() == 0 {
		return session.ErrEmpty
	}
	text, err := p.call(ctx, llm.Request{
		System:      p.Prompts.System,
		Instruction: p.Prompts.RenderFeedback(note),
		History:     sources(h),
	})
	if err != nil {
		return fmt.Errorf("apply feedback: %w", err)
	}
	log.Printf("Feedback applied: %d chars (note %s)", len(text), logutil.Snippet(note, 40))
	return p.append(h, text, session.KindFeedback)
}

// Solve runs the full automatic sequence for one capture: initial analysis
// plus every configured round. Used by the one-shot paths; the resident loop
// drives the granular steps itself.
func (p *Pipeline) Solve(ctx context.Context, h *session.History, png []byte) error {
	if err := p.Initial(ctx, h, png); err != nil {
		return err
	}
	for round := 1; round <= p.Rounds; round++ {
		if err := p.AutoRound(ctx, h, round); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) call(ctx context.Context, req llm.Request) (string, error) {
	callCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	return p.Generate(callCtx, req)
}

func (p *Pipeline) append(h *session.History, text string, kind session.Kind) error {
	return h.Append(session.Iteration{Seq: h.NextSeq(), Source: text, Kind: kind})
}

// sources lists every iteration's text, oldest first, for the model's
// assistant-turn history.
func sources(h *session.History) []string {
	all := h.All()
	out := make([]string, len(all))
	for i, it := range all {
		out[i] = it.Source
	}
	return out
}
