//go:build !linux

package view

import "unsafe"

// probeDisplay is a no-op off Linux. macOS and Windows interactive
// sessions always have a window server.
func probeDisplay() error { return nil }

// fullscreen is not implemented off Linux; the window opens at the
// configured size instead.
func fullscreen(window unsafe.Pointer) {}
