package notification

import (
	"log"

	"github.com/gen2brain/beeep"
)

const maxToastChars = 200

// Show raises a transient toast. Toasts are best effort on every platform;
// failures are logged and never block the control path.
func Show(title, message string) {
	displayText := message
	if len(message) > maxToastChars {
		displayText = message[:maxToastChars] + "..."
	}
	go func() {
		if err := beeep.Notify(title, displayText, ""); err != nil {
			log.Printf("Notification failed (%s): %v", title, err)
		}
	}()
}

// ShowError raises an alert-styled toast for recoverable failures.
func ShowError(title, message string) {
	displayText := message
	if len(message) > maxToastChars {
		displayText = message[:maxToastChars] + "..."
	}
	go func() {
		if err := beeep.Alert(title, displayText, ""); err != nil {
			log.Printf("Alert failed (%s): %v", title, err)
		}
	}()
}
