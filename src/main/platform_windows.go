//go:build windows

package main

import (
	"log"
	"syscall"
)

// enableDPIAwareness opts into per-monitor DPI awareness so capture
// geometry matches physical pixels on scaled displays.
func enableDPIAwareness() {
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			log.Printf("DPI: per-monitor DPI awareness set")
		} else {
			log.Printf("DPI: SetProcessDpiAwareness failed with code %d", ret)
		}
		return
	}

	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err == nil {
		if ret, _, _ := setProcessDPIAware.Call(); ret != 0 {
			log.Printf("DPI: system DPI awareness set (fallback)")
		} else {
			log.Printf("DPI: SetProcessDPIAware failed")
		}
	} else {
		log.Printf("DPI: no DPI awareness API available")
	}
}

// logMonitorConfiguration records the virtual-screen layout, which is
// the coordinate space area selections and window bounds resolve in.
func logMonitorConfiguration() {
	user32 := syscall.NewLazyDLL("user32.dll")
	getSystemMetrics := user32.NewProc("GetSystemMetrics")

	const (
		smCXScreen        = 0
		smCYScreen        = 1
		smXVirtualScreen  = 76
		smYVirtualScreen  = 77
		smCXVirtualScreen = 78
		smCYVirtualScreen = 79
		smCMonitors       = 80
	)

	// GetSystemMetrics returns a signed 32-bit value; the virtual screen
	// origin is negative when a monitor sits left of or above the primary.
	metric := func(index int) int32 {
		ret, _, _ := getSystemMetrics.Call(uintptr(index))
		return int32(ret)
	}

	log.Printf("MONITOR: %d monitors detected", metric(smCMonitors))
	log.Printf("MONITOR: virtual screen x=%d y=%d w=%d h=%d",
		metric(smXVirtualScreen), metric(smYVirtualScreen),
		metric(smCXVirtualScreen), metric(smCYVirtualScreen))
	log.Printf("MONITOR: primary screen w=%d h=%d", metric(smCXScreen), metric(smCYScreen))
}
