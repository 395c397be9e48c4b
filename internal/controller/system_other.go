//go:build !windows

package controller

import (
	"syscall"

	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/winsys"
)

// DefaultProcesses fails on this platform.
func DefaultProcesses() ProcessLister {
	return func() ([]winsys.ProcessEntry, error) {
		return nil, errors.Wrap(syscall.ENOSYS, "process discovery requires windows")
	}
}
