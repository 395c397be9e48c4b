//go:build !windows

package ui

import (
	"syscall"

	"github.com/pkg/errors"
)

// headless has no windows at all, so every lookup comes back empty.
type headless struct{}

// DefaultBackend returns a backend with no windows.
func DefaultBackend() Backend { return headless{} }

func (headless) TopLevelWindows() ([]Window, error) { return nil, nil }
func (headless) WindowPid(Window) uint32            { return 0 }
func (headless) IsVisible(Window) bool              { return false }
func (headless) Owner(Window) Window                { return 0 }
func (headless) IsWindow(Window) bool               { return false }
func (headless) Title(Window, int) []uint16         { return nil }
func (headless) PostMessage(Window, uint32, uintptr, uintptr) error {
	return errors.Wrap(syscall.ENOSYS, "window messages require windows")
}
