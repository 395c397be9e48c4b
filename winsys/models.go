// Package winsys holds the Win32 bindings shared by the injector, the agent
// and the host controller, plus the OS-neutral models they exchange.
package winsys

import "time"

// Handle is a raw OS handle value.
type Handle uintptr

// Process access rights, memory flags and message ids used across the repo.
const (
	PROCESS_CREATE_THREAD     = 0x0002
	PROCESS_VM_OPERATION      = 0x0008
	PROCESS_VM_READ           = 0x0010
	PROCESS_VM_WRITE          = 0x0020
	PROCESS_QUERY_INFORMATION = 0x0400

	// InjectRights is exactly the set the injection sequence needs.
	InjectRights = PROCESS_CREATE_THREAD | PROCESS_QUERY_INFORMATION |
		PROCESS_VM_OPERATION | PROCESS_VM_WRITE | PROCESS_VM_READ

	PAGE_READWRITE = 0x04

	MEM_COMMIT  = 0x1000
	MEM_RESERVE = 0x2000
	MEM_RELEASE = 0x8000

	WM_COMMAND = 0x0111
	WM_CHAR    = 0x0102

	GW_OWNER = 4

	WAIT_OBJECT_0 = 0x00000000
	WAIT_TIMEOUT  = 0x00000102

	nullRef = 0
)

// Inject tracks what one injection run has acquired in the target so that
// every step can unwind exactly what came before it.
type Inject struct {
	Pid         uint32
	PayloadPath string
	PathBytes   []byte
	Process     Handle
	RemoteAddr  uintptr
	LoaderAddr  uintptr
	Thread      Handle
}

// ProcessAPI is the slice of the OS the injection sequence talks to.
type ProcessAPI interface {
	OpenProcess(pid uint32, rights uint32) (Handle, error)
	CloseHandle(h Handle) error
	VirtualAllocEx(process Handle, size uintptr) (uintptr, error)
	VirtualFreeEx(process Handle, addr uintptr) error
	WriteProcessMemory(process Handle, addr uintptr, data []byte) error
	LoaderAddress() (uintptr, error)
	CreateRemoteThread(process Handle, start, arg uintptr) (Handle, error)
	WaitThread(thread Handle, timeout time.Duration) (exitCode uint32, err error)
}

// ProcessEntry is one row of a process snapshot.
type ProcessEntry struct {
	Pid  uint32
	Name string
}

// ModuleEntry is one module loaded in a process.
type ModuleEntry struct {
	Name string
	Path string
	Base uintptr
	Size uint32
}
