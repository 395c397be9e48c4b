//go:build windows

package ui

import (
	"golang.org/x/sys/windows"

	"github.com/r0lh/uiinject/winsys"
)

type user32Backend struct{}

// DefaultBackend returns the user32 backend.
func DefaultBackend() Backend { return user32Backend{} }

func (user32Backend) TopLevelWindows() ([]Window, error) {
	hwnds, err := winsys.TopLevelWindows()
	out := make([]Window, len(hwnds))
	for i, h := range hwnds {
		out[i] = Window(h)
	}
	return out, err
}

func (user32Backend) WindowPid(w Window) uint32 { return winsys.WindowPid(windows.HWND(w)) }

func (user32Backend) IsVisible(w Window) bool { return windows.IsWindowVisible(windows.HWND(w)) }

func (user32Backend) Owner(w Window) Window { return Window(winsys.WindowOwner(windows.HWND(w))) }

func (user32Backend) IsWindow(w Window) bool { return windows.IsWindow(windows.HWND(w)) }

func (user32Backend) Title(w Window, max int) []uint16 {
	return winsys.WindowTitle(windows.HWND(w), max)
}

func (user32Backend) PostMessage(w Window, msg uint32, wparam, lparam uintptr) error {
	return winsys.PostMessage(windows.HWND(w), msg, wparam, lparam)
}
