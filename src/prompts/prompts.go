package prompts

import "strings"

// Set holds one instruction template per call kind. Templates are plain
// instructions; conversational context travels separately as message history.
type Set struct {
	System   string
	Initial  string
	Refine   string
	Optimize string
	Feedback string
}

const (
	defaultSystem = "You are an expert software engineer solving programming problems. " +
		"Always respond with the complete solution source code and nothing else. " +
		"No markdown fences, no commentary, no explanations."

	defaultInitial = "The attached image shows a programming problem statement. " +
		"Read it carefully and write a complete, correct solution. " +
		"Respond with the full source code only."

	defaultRefine = "Review your previous solution for bugs and missed edge cases. " +
		"Produce an improved version. Respond with the full source code only."

	defaultOptimize = "Make a final pass over your solution. Tighten the algorithmic " +
		"complexity where possible and remove anything unused. " +
		"Respond with the full source code only."

	defaultFeedback = "A reviewer left this note on your previous solution: {feedback}\n" +
		"Apply the note and produce the corrected solution. " +
		"Respond with the full source code only."
)

// Default returns the built-in templates.
func Default() Set {
	return Set{
		System:   defaultSystem,
		Initial:  defaultInitial,
		Refine:   defaultRefine,
		Optimize: defaultOptimize,
		Feedback: defaultFeedback,
	}
}

// Resolve overlays non-empty overrides onto the defaults. Empty strings keep
// the built-in template.
func Resolve(system, initial, refine, optimize, feedback string) Set {
	s := Default()
	if strings.TrimSpace(system) != "" {
		s.System = system
	}
	if strings.TrimSpace(initial) != "" {
		s.Initial = initial
	}
	if strings.TrimSpace(refine) != "" {
		s.Refine = refine
	}
	if strings.TrimSpace(optimize) != "" {
		s.Optimize = optimize
	}
	if strings.TrimSpace(feedback) != "" {
		s.Feedback = feedback
	}
	return s
}

// RenderFeedback substitutes the reviewer note into the feedback template.
func (s Set) RenderFeedback(note string) string {
	return strings.ReplaceAll(s.Feedback, "{feedback}", note)
}
