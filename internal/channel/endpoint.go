// Package channel owns the agent's control endpoint: a single-instance,
// duplex byte-stream pipe named after the agent's own process id.
package channel

import (
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// EndpointPrefix is followed by the decimal pid of the agent's process.
	EndpointPrefix = `\\.\pipe\GenericInputPipe_`

	// BufferSize bounds each pipe direction and a single read.
	BufferSize = 1024

	// WakeTimeout bounds the self-connect used to unblock Accept.
	WakeTimeout = 500 * time.Millisecond
)

// ListenFunc creates the endpoint called name.
type ListenFunc func(name string) (net.Listener, error)

// DialFunc connects to the endpoint called name.
type DialFunc func(name string, timeout time.Duration) (net.Conn, error)

// EndpointName returns the endpoint name for pid.
func EndpointName(pid int) string {
	return EndpointPrefix + strconv.Itoa(pid)
}

// PidFromEndpoint extracts the pid from an endpoint name.
func PidFromEndpoint(name string) (int, bool) {
	if !strings.HasPrefix(name, EndpointPrefix) {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimPrefix(name, EndpointPrefix))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Wake opens and immediately closes a client connection to name, which
// releases a server parked in Accept.
func Wake(dial DialFunc, name string) error {
	conn, err := dial(name, WakeTimeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
