package refine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SampleBias/capture-coder/src/llm"
	"github.com/SampleBias/capture-coder/src/prompts"
	"github.com/SampleBias/capture-coder/src/session"
)

// scriptedPipeline returns each canned response in order and records requests.
func scriptedPipeline(rounds int, responses ...string) (*Pipeline, *[]llm.Request) {
	var seen []llm.Request
	i := 0
	p := &Pipeline{
		Generate: func(ctx context.Context, req llm.Request) (string, error) {
			seen = append(seen, req)
			if i >= len(responses) {
				return "", errors.New("script exhausted")
			}
			r := responses[i]
			i++
			return r, nil
		},
		Prompts: prompts.Default(),
		Rounds:  rounds,
	}
	return p, &seen
}

func TestSolveRunsInitialPlusRounds(t *testing.T) {
	p, seen := scriptedPipeline(2, "v1", "v2", "v3")
	h := session.NewHistory()

	if err := p.Solve(context.Background(), h, []byte("png")); err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	all := h.All()
	wantKinds := []session.Kind{session.KindInitial, session.KindRefinement, session.KindOptimization}
	for i, it := range all {
		if it.Kind != wantKinds[i] {
			t.Errorf("iteration %d kind = %s, want %s", i, it.Kind, wantKinds[i])
		}
		if it.Seq != i {
			t.Errorf("iteration %d seq = %d", i, it.Seq)
		}
	}

	calls := *seen
	if len(calls) != 3 {
		t.Fatalf("Generate called %d times, want 3", len(calls))
	}
	if len(calls[0].ImagePNG) == 0 {
		t.Error("initial call should carry the image")
	}
	if len(calls[1].ImagePNG) != 0 || len(calls[2].ImagePNG) != 0 {
		t.Error("rounds should not resend the image")
	}
	if len(calls[1].History) != 1 || calls[1].History[0] != "v1" {
		t.Errorf("round 1 history = %v", calls[1].History)
	}
	if len(calls[2].History) != 2 || calls[2].History[1] != "v2" {
		t.Errorf("round 2 history = %v", calls[2].History)
	}
	if calls[2].Instruction != prompts.Default().Optimize {
		t.Error("last round should use the optimization instruction")
	}
}

func TestSolveZeroRounds(t *testing.T) {
	p, _ := scriptedPipeline(0, "only")
	h := session.NewHistory()

	if err := p.Solve(context.Background(), h, []byte("png")); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
	cur, _ := h.Current()
	if cur.Kind != session.KindInitial {
		t.Errorf("Kind = %s", cur.Kind)
	}
}

func TestSolveStopsOnRoundFailure(t *testing.T) {
	fail := &llm.ServiceError{Code: 500, Message: "upstream"}
	calls := 0
	p := &Pipeline{
		Generate: func(ctx context.Context, req llm.Request) (string, error) {
			calls++
			if calls == 2 {
				return "", fail
			}
			return fmt.Sprintf("v%d", calls), nil
		},
		Prompts: prompts.Default(),
		Rounds:  2,
	}
	h := session.NewHistory()

	err := p.Solve(context.Background(), h, []byte("png"))
	var svcErr *llm.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want *llm.ServiceError", err)
	}
	if calls != 2 {
		t.Errorf("Generate called %d times, want 2 (no retry, no further rounds)", calls)
	}
	// the completed initial iteration stands
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
}

func TestManualRefineNeedsHistory(t *testing.T) {
	p, _ := scriptedPipeline(2, "x")
	if err := p.ManualRefine(context.Background(), session.NewHistory()); !errors.Is(err, session.ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestApplyFeedbackRendersNote(t *testing.T) {
	p, seen := scriptedPipeline(2, "v1", "v2")
	h := session.NewHistory()
	if err := p.Initial(context.Background(), h, []byte("png")); err != nil {
		t.Fatalf("Initial: %v", err)
	}

	if err := p.ApplyFeedback(context.Background(), h, "handle negative numbers"); err != nil {
		t.Fatalf("ApplyFeedback: %v", err)
	}

	cur, _ := h.Current()
	if cur.Kind != session.KindFeedback {
		t.Errorf("Kind = %s, want %s", cur.Kind, session.KindFeedback)
	}
	calls := *seen
	last := calls[len(calls)-1]
	if want := prompts.Default().RenderFeedback("handle negative numbers"); last.Instruction != want {
		t.Errorf("feedback instruction = %q, want %q", last.Instruction, want)
	}
}

func TestCallHonorsTimeout(t *testing.T) {
	p := &Pipeline{
		Generate: func(ctx context.Context, req llm.Request) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		},
		Prompts: prompts.Default(),
		Rounds:  0,
		Timeout: 10 * time.Millisecond,
	}
	h := session.NewHistory()

	err := p.Initial(context.Background(), h, []byte("png"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if h.Len() != 0 {
		t.Error("failed call must not append")
	}
}
