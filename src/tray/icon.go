package tray

import (
	_ "embed"
)

// 16x16 32-bit icon, ICO container so it works on every systray backend.
//
//go:embed icon.ico
var iconICO []byte

// Icon returns the tray icon bytes.
func Icon() []byte { return iconICO }
