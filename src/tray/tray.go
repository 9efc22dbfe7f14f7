package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Options wires the tray menu to the rest of the app. The callbacks run on
// the tray's own goroutine and must hand real work off quickly, normally by
// posting an event.
type Options struct {
	Tooltip       string
	OnShowHistory func()
	OnQuit        func()
}

var state struct {
	mu        sync.Mutex
	ready     bool
	tooltip   string
	about     string
	aboutItem *systray.MenuItem
}

// UpdateTooltip sets the tray tooltip. Safe to call before the tray is up;
// the text is applied once it is.
func UpdateTooltip(text string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.tooltip = text
	if state.ready {
		systray.SetTooltip(text)
	}
}

// SetAbout sets the informational (disabled) menu line, e.g. the resident
// TCP port.
func SetAbout(text string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.about = text
	if state.ready && state.aboutItem != nil {
		state.aboutItem.SetTitle(text)
		state.aboutItem.Show()
	}
}

// Run blocks on the systray main loop until Quit is called.
func Run(opts Options) {
	systray.Run(func() { onReady(opts) }, func() {})
}

// Quit tears the tray down and unblocks Run.
func Quit() {
	systray.Quit()
}

func onReady(opts Options) {
	systray.SetIcon(Icon())
	systray.SetTitle("Capture Coder")

	state.mu.Lock()
	tooltip := state.tooltip
	about := state.about
	if tooltip == "" {
		tooltip = opts.Tooltip
	}
	systray.SetTooltip(tooltip)

	aboutTitle := about
	if aboutTitle == "" {
		aboutTitle = "Capture Coder"
	}
	aboutItem := systray.AddMenuItem(aboutTitle, "")
	aboutItem.Disable()
	if about == "" {
		aboutItem.Hide()
	}
	state.aboutItem = aboutItem
	state.ready = true
	state.mu.Unlock()

	systray.AddSeparator()
	mHistory := systray.AddMenuItem("Show History", "Open the session history page")
	mQuit := systray.AddMenuItem("Quit", "Stop the resident")

	go func() {
		for {
			select {
			case <-mHistory.ClickedCh:
				if opts.OnShowHistory != nil {
					opts.OnShowHistory()
				}
			case <-mQuit.ClickedCh:
				if opts.OnQuit != nil {
					opts.OnQuit()
				}
				systray.Quit()
				return
			}
		}
	}()
}
