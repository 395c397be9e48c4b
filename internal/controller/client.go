package controller

import (
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/internal/channel"
	"github.com/r0lh/uiinject/internal/dispatch"
)

// ReplyTimeout bounds the wait for a QUERY_INFO answer.
const ReplyTimeout = 2 * time.Second

var (
	// ErrPipeNotFound is returned when no endpoint appeared within the
	// connect timeout.
	ErrPipeNotFound = errors.New("pipe not found")
	// ErrNoTargets is returned when there is nobody to send to.
	ErrNoTargets = errors.New("no connected targets")
)

// Client is one connection to one agent endpoint.
type Client struct {
	Pid  uint32
	Name string

	mu   sync.Mutex
	conn net.Conn
}

func notFound(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}

// Connect dials name, retrying every retry while the endpoint does not
// exist yet, until timeout has passed. A busy endpoint is waited on by
// dial itself within the remaining time.
func Connect(dial channel.DialFunc, pid uint32, name string, timeout, retry time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errors.Wrapf(ErrPipeNotFound, "%s after %s", name, timeout)
		}
		conn, err := dial(name, remaining)
		if err == nil {
			return &Client{Pid: pid, Name: name, conn: conn}, nil
		}
		if !notFound(err) {
			return nil, errors.Wrapf(err, "connect %s", name)
		}
		if time.Until(deadline) <= retry {
			return nil, errors.Wrapf(ErrPipeNotFound, "%s after %s", name, timeout)
		}
		time.Sleep(retry)
	}
}

// Send writes cmd as one NUL-terminated frame.
func (c *Client) Send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(cmd)
}

func (c *Client) send(cmd string) error {
	if c.conn == nil {
		return errors.Errorf("client for pid %d is closed", c.Pid)
	}
	frame := append([]byte(cmd), 0)
	if len(frame) > channel.BufferSize {
		return errors.Errorf("command is %d bytes, limit is %d", len(frame), channel.BufferSize)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return errors.Wrapf(err, "write to pid %d", c.Pid)
	}
	return nil
}

// Query sends QUERY_INFO and reads one reply.
func (c *Client) Query() (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(dispatch.QueryInfo); err != nil {
		return Reply{}, err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ReplyTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, channel.BufferSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return Reply{}, errors.Wrapf(err, "read reply from pid %d", c.Pid)
	}
	return ParseReply(buf[:n])
}

// Close drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
