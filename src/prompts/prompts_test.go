package prompts

import (
	"strings"
	"testing"
)

func TestDefaultTemplatesNonEmpty(t *testing.T) {
	s := Default()
	for name, tpl := range map[string]string{
		"System":   s.System,
		"Initial":  s.Initial,
		"Refine":   s.Refine,
		"Optimize": s.Optimize,
		"Feedback": s.Feedback,
	} {
		if strings.TrimSpace(tpl) == "" {
			t.Errorf("%s template is empty", name)
		}
	}
	if !strings.Contains(s.Feedback, "{feedback}") {
		t.Error("Feedback template lost its {feedback} slot")
	}
}

func TestResolveKeepsDefaultsForEmptyOverrides(t *testing.T) {
	s := Resolve("", "custom initial", "  ", "", "")
	if s.Initial != "custom initial" {
		t.Errorf("Initial = %q", s.Initial)
	}
	if s.System != Default().System {
		t.Error("empty override should keep default System")
	}
	if s.Refine != Default().Refine {
		t.Error("whitespace override should keep default Refine")
	}
}

func TestRenderFeedback(t *testing.T) {
	s := Resolve("", "", "", "", "Fix this: {feedback}. Return code.")
	got := s.RenderFeedback("handle empty input")
	want := "Fix this: handle empty input. Return code."
	if got != want {
		t.Errorf("RenderFeedback = %q, want %q", got, want)
	}
}
