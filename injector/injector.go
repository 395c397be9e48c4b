// Package injector loads the agent library into a running process by
// writing its path into the target and starting the system loader there on
// a remote thread.
package injector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/winsys"
)

// DefaultWaitTimeout bounds Options.Wait.
const DefaultWaitTimeout = 10 * time.Second

// Options tune one injection run.
type Options struct {
	// Payload is the agent library name or path. Empty means
	// DefaultPayloadName next to the injector.
	Payload string
	// SkipValidate disables the PE checks on the payload.
	SkipValidate bool
	// Wait blocks until the remote loader returns and checks its result.
	Wait        bool
	WaitTimeout time.Duration
}

// ModuleLister lists the modules loaded in a process.
type ModuleLister func(pid uint32) ([]winsys.ModuleEntry, error)

// Injector runs the injection sequence against API.
type Injector struct {
	API     winsys.ProcessAPI
	Modules ModuleLister
	Options Options
	Out     io.Writer
}

// Result reports what a successful run did.
type Result struct {
	Pid        uint32
	Payload    string
	RemoteAddr uintptr
	LoaderAddr uintptr
	// Verified is set when Options.Wait observed the agent loaded.
	Verified bool
	ExitCode uint32
}

// New returns an Injector printing progress to stdout.
func New(api winsys.ProcessAPI, modules ModuleLister, opts Options) *Injector {
	return &Injector{API: api, Modules: modules, Options: opts, Out: os.Stdout}
}

// ParsePid validates a textual process id: base 10, positive, and within
// the native 32-bit process id width.
func ParsePid(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, newError(InvalidArgument, "parse pid", errors.Wrapf(err, "invalid PID %q", s))
	}
	if v == 0 {
		return 0, newError(InvalidArgument, "parse pid", errors.Errorf("invalid PID %q: must be positive", s))
	}
	return uint32(v), nil
}

func (j *Injector) printf(format string, args ...interface{}) {
	if j.Out != nil {
		fmt.Fprintf(j.Out, format, args...)
	}
}

// Inject loads the agent into pid. On success the target owns the remote
// path buffer and loads the agent asynchronously unless Options.Wait is set.
func (j *Injector) Inject(pid uint32) (*Result, error) {
	if pid == 0 {
		return nil, newError(InvalidArgument, "validate pid", errors.New("PID must be positive"))
	}
	inj := &winsys.Inject{Pid: pid}

	if err := j.OpenProcessHandle(inj); err != nil {
		return nil, err
	}
	defer j.closeProcess(inj)

	if err := j.ResolvePayload(inj); err != nil {
		return nil, err
	}
	if err := j.VirtualAllocEx(inj); err != nil {
		return nil, err
	}
	if err := j.WriteProcessMemory(inj); err != nil {
		j.VirtualFreeEx(inj)
		return nil, err
	}
	if err := j.GetLoadLibAddress(inj); err != nil {
		j.VirtualFreeEx(inj)
		return nil, err
	}
	if err := j.CreateRemoteThread(inj); err != nil {
		j.VirtualFreeEx(inj)
		return nil, err
	}

	res := &Result{
		Pid:        pid,
		Payload:    inj.PayloadPath,
		RemoteAddr: inj.RemoteAddr,
		LoaderAddr: inj.LoaderAddr,
	}
	if j.Options.Wait {
		if err := j.WaitForLoad(inj, res); err != nil {
			return res, err
		}
	} else {
		j.closeThread(inj)
	}
	return res, nil
}

// OpenProcessHandle opens the target with exactly winsys.InjectRights.
func (j *Injector) OpenProcessHandle(inj *winsys.Inject) error {
	h, err := j.API.OpenProcess(inj.Pid, winsys.InjectRights)
	if err != nil {
		return newError(AccessDenied, "OpenProcess",
			errors.Wrapf(err, "can't open process %d, maybe it runs with a higher integrity level", inj.Pid))
	}
	inj.Process = h
	j.printf("[-] Input PID: %v\n", inj.Pid)
	j.printf("[+] Process handle: %#x\n", uintptr(h))
	return nil
}

// ResolvePayload locates and checks the agent library and encodes its path.
func (j *Injector) ResolvePayload(inj *winsys.Inject) error {
	path, err := ResolvePayload(j.Options.Payload)
	if err != nil {
		return newError(PayloadNotFound, "resolve payload", err)
	}
	if !j.Options.SkipValidate {
		if _, err := ValidatePayload(path); err != nil {
			return newError(PayloadNotFound, "validate payload", err)
		}
	}
	b, err := EncodePath(path)
	if err != nil {
		return newError(PayloadNotFound, "encode payload path", err)
	}
	inj.PayloadPath = path
	inj.PathBytes = b
	j.printf("[-] Input DLL: %v\n", path)
	return nil
}

// VirtualAllocEx commits a read-write region sized to the encoded path.
func (j *Injector) VirtualAllocEx(inj *winsys.Inject) error {
	addr, err := j.API.VirtualAllocEx(inj.Process, uintptr(len(inj.PathBytes)))
	if err != nil {
		return newError(RemoteAllocationFailed, "VirtualAllocEx",
			errors.Wrap(err, "can't allocate memory in remote process"))
	}
	inj.RemoteAddr = addr
	j.printf("[+] Allocated %d bytes at remote address: %#x\n", len(inj.PathBytes), addr)
	return nil
}

// WriteProcessMemory copies the encoded path into the remote region.
func (j *Injector) WriteProcessMemory(inj *winsys.Inject) error {
	if err := j.API.WriteProcessMemory(inj.Process, inj.RemoteAddr, inj.PathBytes); err != nil {
		return newError(RemoteWriteFailed, "WriteProcessMemory",
			errors.Wrap(err, "can't write payload path to process memory"))
	}
	j.printf("[+] Wrote payload path to remote memory\n")
	return nil
}

// GetLoadLibAddress resolves the loader entry point.
func (j *Injector) GetLoadLibAddress(inj *winsys.Inject) error {
	addr, err := j.API.LoaderAddress()
	if err != nil {
		return newError(EntryPointUnresolved, "resolve loader", err)
	}
	if addr == 0 {
		return newError(EntryPointUnresolved, "resolve loader", errors.New("loader address is null"))
	}
	inj.LoaderAddr = addr
	j.printf("[+] Loader memory address: %#x\n", addr)
	return nil
}

// CreateRemoteThread starts the loader in the target with the remote path
// as its only argument.
func (j *Injector) CreateRemoteThread(inj *winsys.Inject) error {
	h, err := j.API.CreateRemoteThread(inj.Process, inj.LoaderAddr, inj.RemoteAddr)
	if err != nil {
		return newError(RemoteThreadFailed, "CreateRemoteThread",
			errors.Wrap(err, "can't create remote thread"))
	}
	inj.Thread = h
	j.printf("[+] Thread handle created: %#x\n", uintptr(h))
	return nil
}

// WaitForLoad waits for the remote loader to return. Once it has, the path
// buffer is no longer referenced and is released here.
func (j *Injector) WaitForLoad(inj *winsys.Inject, res *Result) error {
	defer j.closeThread(inj)

	timeout := j.Options.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	code, err := j.API.WaitThread(inj.Thread, timeout)
	if err != nil {
		// The loader may still be reading the path, so it stays allocated.
		j.printf("[!] Loader did not report back: %v\n", err)
		return nil
	}
	res.ExitCode = code
	j.VirtualFreeEx(inj)

	// The exit code is the low half of the module base; a zero can still be
	// a loaded module on 64-bit, so consult the module list before failing.
	if code != 0 || j.moduleLoaded(inj) {
		res.Verified = true
		j.printf("[+] Agent loaded (loader exit code %#x)\n", code)
		return nil
	}
	return newError(LoadFailed, "LoadLibrary", errors.New("remote loader returned a null module"))
}

func (j *Injector) moduleLoaded(inj *winsys.Inject) bool {
	if j.Modules == nil {
		return false
	}
	mods, err := j.Modules(inj.Pid)
	if err != nil {
		return false
	}
	base := filepath.Base(inj.PayloadPath)
	for _, m := range mods {
		if strings.EqualFold(m.Name, base) {
			return true
		}
	}
	return false
}

// VirtualFreeEx releases the remote region; it is safe to call twice.
func (j *Injector) VirtualFreeEx(inj *winsys.Inject) {
	if inj.RemoteAddr == 0 {
		return
	}
	if err := j.API.VirtualFreeEx(inj.Process, inj.RemoteAddr); err != nil {
		j.printf("[!] Error freeing process memory: %v\n", err)
	} else {
		j.printf("[+] Freed remote memory region\n")
	}
	inj.RemoteAddr = 0
}

func (j *Injector) closeThread(inj *winsys.Inject) {
	if inj.Thread == 0 {
		return
	}
	_ = j.API.CloseHandle(inj.Thread)
	inj.Thread = 0
}

func (j *Injector) closeProcess(inj *winsys.Inject) {
	if inj.Process == 0 {
		return
	}
	_ = j.API.CloseHandle(inj.Process)
	inj.Process = 0
}
