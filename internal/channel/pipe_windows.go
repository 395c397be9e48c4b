//go:build windows

package channel

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// Listen creates the named pipe in byte mode. go-winio only creates the
// next pipe instance when Accept is called again, so while a client is
// being served later clients wait.
func Listen(name string) (net.Listener, error) {
	return winio.ListenPipe(name, &winio.PipeConfig{
		MessageMode:      false,
		InputBufferSize:  BufferSize,
		OutputBufferSize: BufferSize,
	})
}

// Dial connects to the named pipe, waiting up to timeout while it is busy.
func Dial(name string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(name, &timeout)
}
