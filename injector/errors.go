package injector

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

// Kind classifies which step of the injection sequence failed.
type Kind int

const (
	InvalidArgument Kind = iota + 1
	AccessDenied
	PayloadNotFound
	RemoteAllocationFailed
	RemoteWriteFailed
	EntryPointUnresolved
	RemoteThreadFailed
	// LoadFailed is only reported when the caller asked to wait for the
	// remote loader and it returned a null module.
	LoadFailed
	// AgentNotLoaded is reported by Eject when the target has no agent.
	AgentNotLoaded
)

var kindNames = map[Kind]string{
	InvalidArgument:        "InvalidArgument",
	AccessDenied:           "AccessDenied",
	PayloadNotFound:        "PayloadNotFound",
	RemoteAllocationFailed: "RemoteAllocationFailed",
	RemoteWriteFailed:      "RemoteWriteFailed",
	EntryPointUnresolved:   "EntryPointUnresolved",
	RemoteThreadFailed:     "RemoteThreadFailed",
	LoadFailed:             "LoadFailed",
	AgentNotLoaded:         "AgentNotLoaded",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every failing injection step.
type Error struct {
	Kind Kind
	Op   string
	// Code is the OS error code when the failure came from an OS call.
	Code uint32
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("[!] ERROR : %s: %s failed with error %d: %v", e.Kind, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("[!] ERROR : %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets errors.Cause walk through to the OS error.
func (e *Error) Cause() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.Code = uint32(errno)
	}
	return e
}

// KindOf returns the Kind of err, 0 when err did not come from this package.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}
