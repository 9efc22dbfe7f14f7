package feedback

import (
	"context"
	"strings"
	"time"

	"github.com/SampleBias/capture-coder/src/clipboard"
)

// MarkerPrefix starts a reviewer note. Everything after it, trimmed, is the
// note content. The prefix is exact; no case folding.
const MarkerPrefix = "# fix: "

// DefaultInterval between clipboard observations.
const DefaultInterval = 500 * time.Millisecond

// ParseMarker extracts the note from a fix marker. Markers with empty
// content do not count.
func ParseMarker(text string) (string, bool) {
	if !strings.HasPrefix(text, MarkerPrefix) {
		return "", false
	}
	content := strings.TrimSpace(strings.TrimPrefix(text, MarkerPrefix))
	if content == "" {
		return "", false
	}
	return content, true
}

// Monitor watches the clipboard for fix markers. The same buffer content is
// never signalled twice: only a change in the observed text can produce a
// new signal, so one marker yields exactly one feedback request no matter
// how many polls see it.
type Monitor struct {
	Interval   time.Duration
	Read       func() (string, error) // clipboard.ReadText in production
	OnFeedback func(content string)

	lastSeen string
}

func New(interval time.Duration, onFeedback func(string)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		Interval:   interval,
		Read:       clipboard.ReadText,
		OnFeedback: onFeedback,
	}
}

// Run polls until ctx is cancelled. Unreadable or non-text buffers are
// normal conditions, not errors.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	text, err := m.Read()
	if err != nil {
		return
	}
	if text == m.lastSeen {
		return
	}
	m.lastSeen = text

	if content, ok := ParseMarker(text); ok {
		m.OnFeedback(content)
	}
}
