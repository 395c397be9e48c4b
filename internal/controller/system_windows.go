//go:build windows

package controller

import "github.com/r0lh/uiinject/winsys"

// DefaultProcesses snapshots processes with toolhelp.
func DefaultProcesses() ProcessLister { return winsys.Processes }
