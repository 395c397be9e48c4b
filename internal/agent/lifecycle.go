// Package agent ties the in-process pieces together: it owns the shutdown
// signal and the channel worker for as long as the library is attached.
package agent

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/internal/channel"
	"github.com/r0lh/uiinject/internal/dispatch"
	"github.com/r0lh/uiinject/internal/ui"
)

// JoinTimeout bounds how long Detach waits for the worker.
const JoinTimeout = 5 * time.Second

// Phase is where the lifecycle stands.
type Phase int

const (
	Unloaded Phase = iota
	Attaching
	Running
	Detaching
)

func (p Phase) String() string {
	switch p {
	case Unloaded:
		return "unloaded"
	case Attaching:
		return "attaching"
	case Running:
		return "running"
	case Detaching:
		return "detaching"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ErrAlreadyAttached is returned by Attach outside the Unloaded phase.
var ErrAlreadyAttached = errors.New("agent already attached")

// State is what one attach owns.
type State struct {
	Pid      int
	Endpoint string
	Signal   *channel.ShutdownSignal
	Locator  *ui.Locator
}

// Lifecycle starts and stops the channel worker.
type Lifecycle struct {
	Listen      channel.ListenFunc
	Dial        channel.DialFunc
	Backend     ui.Backend
	Logger      *slog.Logger
	JoinTimeout time.Duration

	mu    sync.Mutex
	phase Phase
	state *State
	done  chan struct{}
	err   error
}

// New returns an unloaded Lifecycle.
func New(listen channel.ListenFunc, dial channel.DialFunc, backend ui.Backend, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Lifecycle{
		Listen:      listen,
		Dial:        dial,
		Backend:     backend,
		Logger:      logger,
		JoinTimeout: JoinTimeout,
	}
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// State returns the attached state, or nil when unloaded.
func (l *Lifecycle) State() *State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attach creates a clear signal and starts the worker on the endpoint
// named after pid.
func (l *Lifecycle) Attach(pid int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase != Unloaded {
		return errors.Wrapf(ErrAlreadyAttached, "phase %s", l.phase)
	}
	if pid <= 0 {
		return errors.Errorf("invalid pid %d", pid)
	}
	l.phase = Attaching
	log := l.Logger.With("component", "agent")

	st := &State{
		Pid:      pid,
		Endpoint: channel.EndpointName(pid),
		Signal:   channel.NewShutdownSignal(),
		Locator:  ui.NewLocator(l.Backend, uint32(pid), log),
	}

	d := dispatch.New(ui.NewSynthesizer(st.Locator))
	d.OnReject = func(frame []byte, err error) {
		log.Debug("frame ignored", "frame", string(frame), "err", err)
	}
	srv := &channel.Server{
		Name:    st.Endpoint,
		Listen:  l.Listen,
		Handler: d,
		Signal:  st.Signal,
		Logger:  log,
	}

	done := make(chan struct{})
	go l.worker(srv, done)

	l.state = st
	l.done = done
	l.err = nil
	l.phase = Running
	log.Info("agent attached", "endpoint", st.Endpoint)
	return nil
}

func (l *Lifecycle) worker(srv *channel.Server, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	if err := srv.Run(); err != nil {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
	}
}

// Detach sets the signal, wakes a parked accept and waits up to
// JoinTimeout for the worker. It reports whether the worker was joined.
// A worker that outlives the wait is left running.
func (l *Lifecycle) Detach() bool {
	l.mu.Lock()
	if l.phase != Running {
		l.mu.Unlock()
		return false
	}
	l.phase = Detaching
	st, done := l.state, l.done
	l.mu.Unlock()

	log := l.Logger.With("component", "agent")
	st.Signal.Set()
	if err := channel.Wake(l.Dial, st.Endpoint); err != nil {
		log.Debug("wake connect failed", "err", err)
	}

	joined := true
	select {
	case <-done:
	case <-time.After(l.JoinTimeout):
		joined = false
		log.Warn("worker did not stop in time, detaching anyway", "timeout", l.JoinTimeout)
	}

	l.mu.Lock()
	if joined && l.err != nil {
		log.Info("worker ended with error", "err", l.err)
	}
	l.state = nil
	l.done = nil
	l.phase = Unloaded
	l.mu.Unlock()

	log.Info("agent detached", "joined", joined)
	return joined
}

// Err returns the error the last worker ended with, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
