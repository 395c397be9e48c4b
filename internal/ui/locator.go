package ui

import (
	"io"
	"log/slog"
)

// Locator resolves and caches the main window of one process: the first
// visible, unowned top-level window that process owns.
type Locator struct {
	Backend Backend
	Pid     uint32
	Logger  *slog.Logger

	cached Window
}

// NewLocator returns a Locator for pid.
func NewLocator(b Backend, pid uint32, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Locator{Backend: b, Pid: pid, Logger: logger}
}

// Resolve returns the cached window while it is still a window, otherwise
// enumerates again. ok is false when no candidate exists yet.
func (l *Locator) Resolve() (Window, bool) {
	if l.cached != 0 {
		if l.Backend.IsWindow(l.cached) {
			return l.cached, true
		}
		l.Logger.Info("cached main window is gone, resolving again", "hwnd", uintptr(l.cached))
		l.cached = 0
	}

	wins, err := l.Backend.TopLevelWindows()
	if err != nil {
		l.Logger.Warn("window enumeration failed", "err", err)
	}
	for _, w := range wins {
		if l.Backend.WindowPid(w) != l.Pid {
			continue
		}
		if !l.Backend.IsVisible(w) || l.Backend.Owner(w) != 0 {
			continue
		}
		l.cached = w
		l.Logger.Info("main window resolved", "hwnd", uintptr(w))
		return w, true
	}
	l.Logger.Debug("no main window found", "pid", l.Pid)
	return 0, false
}

// Cached returns the last resolved window without enumerating.
func (l *Locator) Cached() Window { return l.cached }
