//go:build windows

package injector

import "github.com/r0lh/uiinject/winsys"

// DefaultAPI returns the live Win32 process API.
func DefaultAPI() winsys.ProcessAPI { return winsys.Kernel32{} }

// DefaultModules lists modules through a toolhelp snapshot.
func DefaultModules() ModuleLister { return winsys.Modules }
