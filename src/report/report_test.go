package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/SampleBias/capture-coder/src/session"
)

func TestWriteRendersAllIterations(t *testing.T) {
	iterations := []session.Iteration{
		{Seq: 0, Source: "print(1)", Kind: session.KindInitial, CreatedAt: time.Now()},
		{Seq: 1, Source: "print(2)", Kind: session.KindOptimization, CreatedAt: time.Now()},
	}

	path, err := Write(t.TempDir(), "abc123", iterations)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	page := string(data)

	for _, want := range []string{"Iteration 0", "Iteration 1", "print(1)", "print(2)", "initial", "final-optimization"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if !strings.Contains(page, "<pre>") {
		t.Error("solutions should render as code blocks")
	}
	if !strings.HasSuffix(path, "capture-coder-history-abc123.html") {
		t.Errorf("unexpected path %q", path)
	}
}

func TestWriteSurvivesBackticksInSource(t *testing.T) {
	iterations := []session.Iteration{
		{Seq: 0, Source: "s := `raw`\n```\nnested fence\n```", Kind: session.KindInitial, CreatedAt: time.Now()},
	}

	path, err := Write(t.TempDir(), "ticks", iterations)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "nested fence") {
		t.Error("backtick-heavy source lost in rendering")
	}
}

func TestWriteEmptyHistory(t *testing.T) {
	if _, err := Write(t.TempDir(), "none", nil); err == nil {
		t.Error("expected error for empty history")
	}
}

func TestFenceForGrowsPastLongestRun(t *testing.T) {
	if got := fenceFor("no ticks"); got != "```" {
		t.Errorf("fenceFor = %q", got)
	}
	if got := fenceFor("has ```` four"); got != "`````" {
		t.Errorf("fenceFor = %q, want five backticks", got)
	}
}
