package channel

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"
)

// AcceptBackoff is the pause after a failed Accept before the next one.
const AcceptBackoff = 100 * time.Millisecond

// Handler turns one frame into an optional reply.
type Handler interface {
	Dispatch(frame []byte) (reply []byte, ok bool)
}

// Server serves one client at a time on a single endpoint until Signal is
// set.
type Server struct {
	Name    string
	Listen  ListenFunc
	Handler Handler
	Signal  *ShutdownSignal
	Logger  *slog.Logger
}

// Frame cuts a raw read at the first NUL, matching the terminator clients
// append to each command.
func Frame(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// Frames splits a raw read into its NUL-terminated frames, in order. Empty
// segments are dropped and trailing bytes without a terminator form the last
// frame, so a read with no NUL at all is a single frame.
func Frames(b []byte) [][]byte {
	var frames [][]byte
	for len(b) > 0 {
		f := Frame(b)
		if len(f) > 0 {
			frames = append(frames, f)
		}
		if len(f) == len(b) {
			break
		}
		b = b[len(f)+1:]
	}
	return frames
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Run creates the endpoint and serves clients until the signal is set.
// An endpoint that cannot be created ends the worker; it is not retried.
// Accept failures are logged and retried after AcceptBackoff.
func (s *Server) Run() error {
	log := s.logger().With("endpoint", s.Name)

	ln, err := s.Listen(s.Name)
	if err != nil {
		log.Error("create endpoint failed", "err", err)
		return errors.Wrapf(err, "create endpoint %s", s.Name)
	}
	log.Info("endpoint created, waiting for clients")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.Signal.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()
	defer ln.Close()

	for !s.Signal.IsSet() {
		conn, err := ln.Accept()
		if err != nil {
			if s.Signal.IsSet() {
				break
			}
			log.Error("accept failed", "err", err)
			select {
			case <-s.Signal.Done():
			case <-time.After(AcceptBackoff):
			}
			continue
		}
		if s.Signal.IsSet() {
			// The self-connect that woke us during shutdown.
			_ = conn.Close()
			break
		}
		log.Info("client connected")
		s.serve(conn, log)
		log.Info("client disconnected")
	}

	log.Info("shutdown observed, endpoint closed")
	return nil
}

// serve runs the frame loop for one client. Every frame in a read is
// dispatched and answered, in order, before the next read starts.
func (s *Server) serve(conn net.Conn, log *slog.Logger) {
	defer conn.Close()

	buf := make([]byte, BufferSize)
	for !s.Signal.IsSet() {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Debug("read ended", "err", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		for _, frame := range Frames(buf[:n]) {
			log.Debug("frame received", "bytes", len(frame), "frame", string(frame))

			reply, ok := s.Handler.Dispatch(frame)
			if !ok {
				continue
			}
			if _, err := conn.Write(reply); err != nil {
				log.Warn("write reply failed", "err", err)
				return
			}
		}
	}
}
