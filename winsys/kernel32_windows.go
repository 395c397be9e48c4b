//go:build windows

package winsys

import (
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	modKernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procVirtualAllocEx     = modKernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modKernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modKernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modKernel32.NewProc("GetExitCodeThread")
)

// ErrWaitTimeout is the errno a timed-out wait maps to.
var ErrWaitTimeout = windows.Errno(WAIT_TIMEOUT)

// LoaderExport is the loader entry point the remote thread starts at.
const LoaderExport = "LoadLibraryW"

// Kernel32 is the live ProcessAPI.
type Kernel32 struct{}

func (Kernel32) OpenProcess(pid uint32, rights uint32) (Handle, error) {
	h, err := windows.OpenProcess(rights, false, pid)
	if err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (Kernel32) CloseHandle(h Handle) error {
	return windows.CloseHandle(windows.Handle(h))
}

func (Kernel32) VirtualAllocEx(process Handle, size uintptr) (uintptr, error) {
	addr, _, lastErr := procVirtualAllocEx.Call(
		uintptr(process),
		uintptr(nullRef),
		size,
		uintptr(MEM_COMMIT|MEM_RESERVE),
		uintptr(PAGE_READWRITE))
	if addr == 0 {
		return 0, lastErr
	}
	return addr, nil
}

func (Kernel32) VirtualFreeEx(process Handle, addr uintptr) error {
	ok, _, lastErr := procVirtualFreeEx.Call(
		uintptr(process),
		addr,
		uintptr(0),
		uintptr(MEM_RELEASE))
	if ok == 0 {
		return lastErr
	}
	return nil
}

func (Kernel32) WriteProcessMemory(process Handle, addr uintptr, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty write")
	}
	var written uintptr
	if err := windows.WriteProcessMemory(windows.Handle(process), addr, &data[0], uintptr(len(data)), &written); err != nil {
		return err
	}
	if written != uintptr(len(data)) {
		return errors.Errorf("short write: %d of %d bytes", written, len(data))
	}
	return nil
}

// LoaderAddress resolves the loader in this process's kernel32. The module
// is mapped at the same base in every process of one architecture and boot,
// which is what makes the address valid in the target.
func (Kernel32) LoaderAddress() (uintptr, error) {
	name, err := windows.UTF16PtrFromString("kernel32.dll")
	if err != nil {
		return 0, err
	}
	var mod windows.Handle
	if err := windows.GetModuleHandleEx(0, name, &mod); err != nil {
		return 0, errors.Wrap(err, "GetModuleHandleEx")
	}
	addr, err := windows.GetProcAddress(mod, LoaderExport)
	if err != nil {
		return 0, errors.Wrap(err, "GetProcAddress")
	}
	return addr, nil
}

func (Kernel32) CreateRemoteThread(process Handle, start, arg uintptr) (Handle, error) {
	var threadID uint32
	h, _, lastErr := procCreateRemoteThread.Call(
		uintptr(process),
		uintptr(nullRef),
		uintptr(nullRef),
		start,
		arg,
		uintptr(0),
		uintptr(unsafe.Pointer(&threadID)))
	if h == 0 {
		return 0, lastErr
	}
	return Handle(h), nil
}

// WaitThread waits for a thread and returns its exit code. A timeout is
// reported as ErrWaitTimeout wrapped in an error.
func (Kernel32) WaitThread(thread Handle, timeout time.Duration) (uint32, error) {
	ms := uint32(windows.INFINITE)
	if timeout > 0 {
		ms = uint32(timeout / time.Millisecond)
	}
	event, err := windows.WaitForSingleObject(windows.Handle(thread), ms)
	if err != nil {
		return 0, errors.Wrap(err, "WaitForSingleObject")
	}
	if event == WAIT_TIMEOUT {
		return 0, errors.Wrap(ErrWaitTimeout, "WaitForSingleObject")
	}
	var code uint32
	ok, _, lastErr := procGetExitCodeThread.Call(uintptr(thread), uintptr(unsafe.Pointer(&code)))
	if ok == 0 {
		return 0, errors.Wrap(lastErr, "GetExitCodeThread")
	}
	return code, nil
}
