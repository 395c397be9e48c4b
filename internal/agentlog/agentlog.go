// Package agentlog is the agent's structured log. The agent runs inside a
// foreign process with no console, so records go to a file under the user
// cache directory, and every write takes a file lock so two injected
// processes can share the same log.
package agentlog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const (
	// Dir is created under the user cache directory.
	Dir = "UIInjectAgent"
	// FileName is the log file inside Dir.
	FileName = "agent.log"
	// DebugEnv enables debug records when set to 1 or true.
	DebugEnv = "UIINJECT_DEBUG"
)

// LockedWriter appends to a file while holding an advisory lock on a
// sibling .lock file.
type LockedWriter struct {
	mu   sync.Mutex
	file *os.File
	lock *flock.Flock
}

// OpenFile opens path for appending, creating parent directories.
func OpenFile(path string) (*LockedWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	return &LockedWriter{file: f, lock: flock.New(path + ".lock")}, nil
}

// Write appends p as one locked write. A failed lock does not drop p.
func (w *LockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lock.Lock(); err == nil {
		defer w.lock.Unlock()
	}
	return w.file.Write(p)
}

// Close releases the file and the lock.
func (w *LockedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.lock.Close()
	return w.file.Close()
}

// DefaultPath is <user cache dir>/UIInjectAgent/agent.log.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "locate user cache directory")
	}
	return filepath.Join(dir, Dir, FileName), nil
}

// LevelFromEnv reads DebugEnv through lookup.
func LevelFromEnv(lookup func(string) (string, bool)) slog.Level {
	v, ok := lookup(DebugEnv)
	if !ok {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New returns a text logger over w tagged with the host pid.
func New(w io.Writer, level slog.Level, pid int) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("pid", pid)
}

// Open builds the agent logger at the default path. When the file cannot
// be opened the logger discards. The returned closer is never nil.
func Open(pid int) (*slog.Logger, io.Closer) {
	level := LevelFromEnv(os.LookupEnv)
	path, err := DefaultPath()
	if err == nil {
		var w *LockedWriter
		if w, err = OpenFile(path); err == nil {
			return New(w, level, pid), w
		}
	}
	return New(io.Discard, level, pid), nopCloser{}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
