package channel

import "sync"

// ShutdownSignal is a manual-reset flag: once set it stays set, and every
// observer sees it the first time it looks.
type ShutdownSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewShutdownSignal returns a clear signal.
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{ch: make(chan struct{})}
}

// Set raises the signal. Extra calls are no-ops.
func (s *ShutdownSignal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether Set has been called.
func (s *ShutdownSignal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done is closed when the signal is set.
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.ch
}
