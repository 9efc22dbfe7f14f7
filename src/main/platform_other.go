//go:build !windows

package main

// DPI awareness is a Windows concern; X11 and macOS report physical
// pixels through the screenshot library directly.
func enableDPIAwareness() {}

func logMonitorConfiguration() {}
