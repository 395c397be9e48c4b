//go:build !windows

package injector

import (
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/winsys"
)

var errUnsupported = errors.Wrap(syscall.ENOSYS, "process injection requires windows")

type unsupportedAPI struct{}

func (unsupportedAPI) OpenProcess(uint32, uint32) (winsys.Handle, error) { return 0, errUnsupported }
func (unsupportedAPI) CloseHandle(winsys.Handle) error                   { return nil }
func (unsupportedAPI) VirtualAllocEx(winsys.Handle, uintptr) (uintptr, error) {
	return 0, errUnsupported
}
func (unsupportedAPI) VirtualFreeEx(winsys.Handle, uintptr) error { return errUnsupported }
func (unsupportedAPI) WriteProcessMemory(winsys.Handle, uintptr, []byte) error {
	return errUnsupported
}
func (unsupportedAPI) LoaderAddress() (uintptr, error) { return 0, errUnsupported }
func (unsupportedAPI) CreateRemoteThread(winsys.Handle, uintptr, uintptr) (winsys.Handle, error) {
	return 0, errUnsupported
}
func (unsupportedAPI) WaitThread(winsys.Handle, time.Duration) (uint32, error) {
	return 0, errUnsupported
}

// DefaultAPI fails every call on this platform.
func DefaultAPI() winsys.ProcessAPI { return unsupportedAPI{} }

// DefaultModules fails on this platform.
func DefaultModules() ModuleLister {
	return func(uint32) ([]winsys.ModuleEntry, error) { return nil, errUnsupported }
}
