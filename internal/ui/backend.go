// Package ui finds the host process's main window and drives it with
// posted window messages.
package ui

// Window is a window handle. The package never owns one.
type Window uintptr

// Backend is the window-system surface the locator and synthesizer use.
type Backend interface {
	TopLevelWindows() ([]Window, error)
	WindowPid(w Window) uint32
	IsVisible(w Window) bool
	Owner(w Window) Window
	IsWindow(w Window) bool
	// Title returns at most max UTF-16 units of the window text.
	Title(w Window, max int) []uint16
	PostMessage(w Window, msg uint32, wparam, lparam uintptr) error
}
