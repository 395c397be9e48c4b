//go:build windows

package winsys

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modUser32 = windows.NewLazySystemDLL("user32.dll")

	procPostMessageW = modUser32.NewProc("PostMessageW")
	procGetWindow    = modUser32.NewProc("GetWindow")
)

var (
	enumMu    sync.Mutex
	enumFound []windows.HWND
	// A callback slot is never released, so there is exactly one.
	enumCallback = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		enumFound = append(enumFound, hwnd)
		return 1
	})
)

// TopLevelWindows returns every top-level window handle in z-order.
func TopLevelWindows() ([]windows.HWND, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumFound = nil
	err := windows.EnumWindows(enumCallback, unsafe.Pointer(nil))
	hwnds := enumFound
	enumFound = nil
	return hwnds, err
}

// WindowPid returns the id of the process that owns hwnd.
func WindowPid(hwnd windows.HWND) uint32 {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return 0
	}
	return pid
}

// WindowOwner returns the owner window of hwnd, 0 if it has none.
func WindowOwner(hwnd windows.HWND) windows.HWND {
	owner, _, _ := procGetWindow.Call(uintptr(hwnd), uintptr(GW_OWNER))
	return windows.HWND(owner)
}

// WindowTitle reads at most max UTF-16 units of the window text.
func WindowTitle(hwnd windows.HWND, max int) []uint16 {
	buf := make([]uint16, max+1)
	n, err := windows.GetWindowText(hwnd, &buf[0], int32(len(buf)))
	if err != nil || n <= 0 {
		return nil
	}
	return buf[:n]
}

// PostMessage queues msg on the window's thread without waiting for it.
func PostMessage(hwnd windows.HWND, msg uint32, wparam, lparam uintptr) error {
	ok, _, lastErr := procPostMessageW.Call(uintptr(hwnd), uintptr(msg), wparam, lparam)
	if ok == 0 {
		if errno, isErrno := lastErr.(syscall.Errno); isErrno && errno == 0 {
			return syscall.EINVAL
		}
		return lastErr
	}
	return nil
}
