package injector

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/winsys"
)

// Eject stops the agent in pid by running its detach export on a remote
// thread. The library stays mapped: a Go runtime cannot be unloaded.
func (j *Injector) Eject(pid uint32) error {
	if pid == 0 {
		return newError(InvalidArgument, "validate pid", errors.New("PID must be positive"))
	}
	if j.Modules == nil {
		return newError(AgentNotLoaded, "list modules", errors.New("no module lister"))
	}

	path, err := ResolvePayload(j.Options.Payload)
	if err != nil {
		return newError(PayloadNotFound, "resolve payload", err)
	}
	payload, err := ValidatePayload(path)
	if err != nil {
		return newError(PayloadNotFound, "validate payload", err)
	}

	mods, err := j.Modules(pid)
	if err != nil {
		return newError(AccessDenied, "list modules", err)
	}
	base := uintptr(0)
	name := filepath.Base(path)
	for _, m := range mods {
		if strings.EqualFold(m.Name, name) {
			base = m.Base
			break
		}
	}
	if base == 0 {
		return newError(AgentNotLoaded, "find agent module", errors.Errorf("%s is not loaded in %d", name, pid))
	}

	inj := &winsys.Inject{Pid: pid}
	if err := j.OpenProcessHandle(inj); err != nil {
		return err
	}
	defer j.closeProcess(inj)

	inj.LoaderAddr = base + uintptr(payload.DetachRVA)
	j.printf("[+] %s at remote address: %#x\n", DetachExport, inj.LoaderAddr)
	if err := j.CreateRemoteThread(inj); err != nil {
		return err
	}
	defer j.closeThread(inj)

	timeout := j.Options.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	if _, err := j.API.WaitThread(inj.Thread, timeout); err != nil {
		j.printf("[!] %s did not return: %v\n", DetachExport, err)
		return nil
	}
	j.printf("[+] Agent detached from %d\n", pid)
	return nil
}
