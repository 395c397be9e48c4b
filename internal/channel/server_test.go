package channel

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	delay  time.Duration
	mu     sync.Mutex
	frames []string
}

func (h *recordingHandler) Dispatch(frame []byte) ([]byte, bool) {
	time.Sleep(h.delay)
	h.mu.Lock()
	h.frames = append(h.frames, string(frame))
	h.mu.Unlock()
	if string(frame) == "QUERY_INFO" {
		return []byte("PID:1;HWND:0;Title:N/A;"), true
	}
	return nil, false
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.frames...)
}

type testEndpoint struct {
	ln     net.Listener
	server *Server
	h      *recordingHandler
	done   chan error
}

func startServer(t *testing.T) *testEndpoint {
	t.Helper()
	return startServerWith(t, &recordingHandler{}, nil)
}

// startServerWith serves h on a loopback listener, optionally wrapped.
func startServerWith(t *testing.T, h *recordingHandler, wrap func(net.Listener) net.Listener) *testEndpoint {
	t.Helper()
	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln := tcp
	if wrap != nil {
		ln = wrap(tcp)
	}

	ep := &testEndpoint{ln: ln, h: h, done: make(chan error, 1)}
	ep.server = &Server{
		Name:    tcp.Addr().String(),
		Listen:  func(string) (net.Listener, error) { return ln, nil },
		Handler: ep.h,
		Signal:  NewShutdownSignal(),
	}
	go func() { ep.done <- ep.server.Run() }()

	t.Cleanup(func() {
		ep.server.Signal.Set()
		_ = Wake(ep.dial, ep.server.Name)
		select {
		case <-ep.done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ep
}

func (ep *testEndpoint) dial(name string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", name, timeout)
}

func (ep *testEndpoint) connect(t *testing.T) net.Conn {
	t.Helper()
	conn, err := ep.dial(ep.server.Name, time.Second)
	require.NoError(t, err)
	return conn
}

func TestServer_RoundTripAcrossReconnect(t *testing.T) {
	ep := startServer(t)

	c1 := ep.connect(t)
	_, err := c1.Write([]byte("TYPE:Hi\x00"))
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	c2 := ep.connect(t)
	defer c2.Close()
	_, err = c2.Write([]byte("QUERY_INFO"))
	require.NoError(t, err)

	require.NoError(t, c2.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, BufferSize)
	n, err := c2.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "PID:1;HWND:0;Title:N/A;", string(buf[:n]))
	assert.Equal(t, []string{"TYPE:Hi", "QUERY_INFO"}, ep.h.seen())
}

func TestServer_SecondClientWaitsForFirst(t *testing.T) {
	ep := startServer(t)

	c1 := ep.connect(t)
	_, err := c1.Write([]byte("TYPE:a"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(ep.h.seen()) == 1 }, time.Second, 10*time.Millisecond)

	c2 := ep.connect(t)
	defer c2.Close()
	_, err = c2.Write([]byte("QUERY_INFO"))
	require.NoError(t, err)

	buf := make([]byte, BufferSize)
	require.NoError(t, c2.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, err = c2.Read(buf)
	require.Error(t, err, "second client must not be served while the first is connected")

	require.NoError(t, c1.Close())
	require.NoError(t, c2.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := c2.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "PID:1;HWND:0;Title:N/A;", string(buf[:n]))
}

func TestServer_FramesQueuedDuringSlowDispatchKeepOrder(t *testing.T) {
	ep := startServerWith(t, &recordingHandler{delay: 100 * time.Millisecond}, nil)

	c := ep.connect(t)
	defer c.Close()
	for _, f := range []string{"TYPE:a\x00", "TYPE:b\x00", "TYPE:c\x00", "QUERY_INFO\x00"} {
		_, err := c.Write([]byte(f))
		require.NoError(t, err)
	}

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, BufferSize)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "PID:1;HWND:0;Title:N/A;", string(buf[:n]))
	assert.Equal(t, []string{"TYPE:a", "TYPE:b", "TYPE:c", "QUERY_INFO"}, ep.h.seen())
}

// flakyListener fails its first Accept.
type flakyListener struct {
	net.Listener
	once sync.Once
}

func (l *flakyListener) Accept() (net.Conn, error) {
	var failed bool
	l.once.Do(func() { failed = true })
	if failed {
		return nil, errors.New("transient accept failure")
	}
	return l.Listener.Accept()
}

func TestServer_AcceptFailureIsRetried(t *testing.T) {
	ep := startServerWith(t, &recordingHandler{}, func(ln net.Listener) net.Listener {
		return &flakyListener{Listener: ln}
	})

	c := ep.connect(t)
	defer c.Close()
	_, err := c.Write([]byte("QUERY_INFO\x00"))
	require.NoError(t, err)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, BufferSize)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "PID:1;HWND:0;Title:N/A;", string(buf[:n]))

	select {
	case err := <-ep.done:
		t.Fatalf("worker ended after accept failure: %v", err)
	default:
	}
}

func TestServer_ShutdownWakesAccept(t *testing.T) {
	ep := startServer(t)

	ep.server.Signal.Set()
	_ = Wake(ep.dial, ep.server.Name)

	select {
	case err := <-ep.done:
		assert.NoError(t, err)
		ep.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("worker still parked in accept")
	}
}

func TestServer_ListenFailureEndsWorker(t *testing.T) {
	s := &Server{
		Name:    EndpointName(7),
		Listen:  func(string) (net.Listener, error) { return nil, errors.New("pipe busy") },
		Handler: &recordingHandler{},
		Signal:  NewShutdownSignal(),
	}
	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe busy")
}

func TestFrame(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TYPE:abc", "TYPE:abc"},
		{"TYPE:abc\x00", "TYPE:abc"},
		{"QUERY_INFO\x00junk", "QUERY_INFO"},
		{"\x00", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(Frame([]byte(tt.in))))
	}
}

func TestFrames(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"TYPE:abc", []string{"TYPE:abc"}},
		{"TYPE:abc\x00", []string{"TYPE:abc"}},
		{"TYPE:a\x00TYPE:b\x00QUERY_INFO\x00", []string{"TYPE:a", "TYPE:b", "QUERY_INFO"}},
		{"MENU:5\x00TYPE:tail", []string{"MENU:5", "TYPE:tail"}},
		{"\x00\x00TYPE:x\x00\x00", []string{"TYPE:x"}},
		{"\x00", nil},
	}
	for _, tt := range tests {
		var got []string
		for _, f := range Frames([]byte(tt.in)) {
			got = append(got, string(f))
		}
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestEndpointName(t *testing.T) {
	name := EndpointName(4242)
	assert.Equal(t, `\\.\pipe\GenericInputPipe_4242`, name)

	pid, ok := PidFromEndpoint(name)
	assert.True(t, ok)
	assert.Equal(t, 4242, pid)

	_, ok = PidFromEndpoint(`\\.\pipe\Other_1`)
	assert.False(t, ok)
	_, ok = PidFromEndpoint(EndpointPrefix + "x")
	assert.False(t, ok)
}

func TestShutdownSignal(t *testing.T) {
	s := NewShutdownSignal()
	assert.False(t, s.IsSet())
	s.Set()
	s.Set()
	assert.True(t, s.IsSet())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
}
