//go:build windows

package winsys

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Processes lists every process visible to the caller.
func Processes() ([]ProcessEntry, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, errors.Wrap(err, "CreateToolhelp32Snapshot")
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	if err := windows.Process32First(snap, &pe); err != nil {
		return nil, errors.Wrap(err, "Process32First")
	}

	var out []ProcessEntry
	for {
		out = append(out, ProcessEntry{
			Pid:  pe.ProcessID,
			Name: windows.UTF16ToString(pe.ExeFile[:]),
		})
		if err := windows.Process32Next(snap, &pe); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return out, errors.Wrap(err, "Process32Next")
		}
	}
	return out, nil
}

// Modules lists the modules loaded in pid, covering both bitnesses.
func Modules(pid uint32) ([]ModuleEntry, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return nil, errors.Wrapf(err, "CreateToolhelp32Snapshot(%d)", pid)
	}
	defer windows.CloseHandle(snap)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))
	if err := windows.Module32First(snap, &me); err != nil {
		return nil, errors.Wrapf(err, "Module32First(%d)", pid)
	}

	var out []ModuleEntry
	for {
		out = append(out, ModuleEntry{
			Name: windows.UTF16ToString(me.Module[:]),
			Path: windows.UTF16ToString(me.ExePath[:]),
			Base: me.ModBaseAddr,
			Size: me.ModBaseSize,
		})
		if err := windows.Module32Next(snap, &me); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return out, errors.Wrapf(err, "Module32Next(%d)", pid)
		}
	}
	return out, nil
}
