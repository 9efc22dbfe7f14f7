//go:build !windows

package overlay

// Interactive drag selection has a Windows implementation only. Other
// platforms select the configured display's full bounds; CAPTURE_RECT
// narrows it.
func platformSelector(display int) Selector {
	return DisplaySelector{Display: display}
}
