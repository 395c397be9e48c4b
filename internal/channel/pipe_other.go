//go:build !windows

package channel

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// socketPath maps a pipe name onto a unix socket in the temp dir so the
// channel can be exercised off Windows.
func socketPath(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return filepath.Join(os.TempDir(), name+".sock")
}

// Listen creates the endpoint as a unix socket, removing a stale one.
func Listen(name string) (net.Listener, error) {
	path := socketPath(name)
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	return net.Listen("unix", path)
}

// Dial connects to the endpoint.
func Dial(name string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath(name), timeout)
}
