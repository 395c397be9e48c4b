package controller

import (
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r0lh/uiinject/internal/channel"
	"github.com/r0lh/uiinject/internal/config"
	"github.com/r0lh/uiinject/internal/dispatch"
	"github.com/r0lh/uiinject/internal/ui"
	"github.com/r0lh/uiinject/winsys"
)

// fakeAgents answers dials with in-memory pipes served by a goroutine per
// connection that records frames and answers QUERY_INFO.
type fakeAgents struct {
	mu     sync.Mutex
	live   map[string]uint32
	frames map[uint32][]string
	ends   map[uint32]net.Conn
	dials  int
}

func newFakeAgents(pids ...uint32) *fakeAgents {
	f := &fakeAgents{
		live:   map[string]uint32{},
		frames: map[uint32][]string{},
		ends:   map[uint32]net.Conn{},
	}
	for _, pid := range pids {
		f.live[channel.EndpointName(int(pid))] = pid
	}
	return f
}

func (f *fakeAgents) dial(name string, _ time.Duration) (net.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	pid, ok := f.live[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	client, server := net.Pipe()
	f.ends[pid] = server
	go f.serve(pid, server)
	return client, nil
}

func (f *fakeAgents) serve(pid uint32, conn net.Conn) {
	buf := make([]byte, channel.BufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		for _, b := range channel.Frames(buf[:n]) {
			frame := string(b)
			f.mu.Lock()
			f.frames[pid] = append(f.frames[pid], frame)
			f.mu.Unlock()
			if frame == dispatch.QueryInfo {
				_, _ = conn.Write(dispatch.FormatReply(ui.Info{Pid: pid, HWND: 77, Title: "Calculator"}))
			}
		}
	}
}

func (f *fakeAgents) seen(pid uint32) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames[pid]...)
}

func (f *fakeAgents) kill(pid uint32) {
	f.mu.Lock()
	end := f.ends[pid]
	f.mu.Unlock()
	_ = end.Close()
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ConnectTimeout = 200 * time.Millisecond
	cfg.RetryInterval = 10 * time.Millisecond
	return cfg
}

func newTestController(agents *fakeAgents, pids ...uint32) *Controller {
	c := New(testConfig(), nil)
	c.Dial = agents.dial
	c.Processes = func() ([]winsys.ProcessEntry, error) {
		var out []winsys.ProcessEntry
		for _, pid := range pids {
			out = append(out, winsys.ProcessEntry{Pid: pid, Name: "calc.exe"})
		}
		return out, nil
	}
	c.Modules = func(uint32) ([]winsys.ModuleEntry, error) {
		return []winsys.ModuleEntry{{Name: "UIAGENT.DLL", Path: `C:\tools\uiagent.dll`}}, nil
	}
	return c
}

func waitFrames(t *testing.T, agents *fakeAgents, pid uint32, n int) []string {
	t.Helper()
	var got []string
	require.Eventually(t, func() bool {
		got = agents.seen(pid)
		return len(got) >= n
	}, time.Second, 5*time.Millisecond)
	return got
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		in      string
		want    Reply
		wantErr bool
	}{
		{in: "PID:4242;HWND:0;Title:N/A;", want: Reply{Pid: 4242, Title: "N/A"}},
		{in: "PID:7;HWND:6699;Title:a;b;", want: Reply{Pid: 7, HWND: 6699, Title: "a;b"}},
		{in: "PID:7;HWND:1;Title:;\x00junk", want: Reply{Pid: 7, HWND: 1}},
		{in: "PID:x;HWND:1;Title:t;", wantErr: true},
		{in: "PID:7;HWND:-1;Title:t;", wantErr: true},
		{in: "PID:7;HWND:1;Title:t", wantErr: true},
		{in: "HWND:1;Title:t;", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseReply([]byte(tt.in))
		if tt.wantErr {
			require.Error(t, err, tt.in)
			assert.Equal(t, ErrMalformedReply, errors.Cause(err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDiscover(t *testing.T) {
	procs := func() ([]winsys.ProcessEntry, error) {
		return []winsys.ProcessEntry{
			{Pid: 0, Name: "[System Process]"},
			{Pid: 30, Name: "notepad.exe"},
			{Pid: 10, Name: "calc.exe"},
			{Pid: 20, Name: "lsass.exe"},
		}, nil
	}
	mods := func(pid uint32) ([]winsys.ModuleEntry, error) {
		switch pid {
		case 10:
			return []winsys.ModuleEntry{{Name: "kernel32.dll"}, {Name: "UiAgent.DLL", Path: `C:\a\UiAgent.DLL`}}, nil
		case 20:
			return nil, errors.New("access denied")
		case 30:
			return []winsys.ModuleEntry{{Name: "uiagent.dll", Path: `C:\b\uiagent.dll`}}, nil
		}
		t.Fatalf("unexpected pid %d", pid)
		return nil, nil
	}

	got, err := Discover(procs, mods, "uiagent.dll")
	require.NoError(t, err)
	assert.Equal(t, []Target{
		{Pid: 10, Name: "calc.exe", Module: `C:\a\UiAgent.DLL`},
		{Pid: 30, Name: "notepad.exe", Module: `C:\b\uiagent.dll`},
	}, got)
}

func TestDiscoverSnapshotFailure(t *testing.T) {
	procs := func() ([]winsys.ProcessEntry, error) { return nil, errors.New("snapshot failed") }
	_, err := Discover(procs, nil, "uiagent.dll")
	assert.Error(t, err)
}

func TestConnectRetriesUntilEndpointExists(t *testing.T) {
	agents := newFakeAgents()
	name := channel.EndpointName(5)
	go func() {
		time.Sleep(30 * time.Millisecond)
		agents.mu.Lock()
		agents.live[name] = 5
		agents.mu.Unlock()
	}()

	cl, err := Connect(agents.dial, 5, name, time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	defer cl.Close()
	assert.Greater(t, agents.dials, 1)
}

func TestConnectGivesUpWithPipeNotFound(t *testing.T) {
	agents := newFakeAgents()
	start := time.Now()
	_, err := Connect(agents.dial, 5, channel.EndpointName(5), 50*time.Millisecond, 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, ErrPipeNotFound, errors.Cause(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnectOtherErrorIsNotRetried(t *testing.T) {
	calls := 0
	dial := func(string, time.Duration) (net.Conn, error) {
		calls++
		return nil, errors.New("access denied")
	}
	_, err := Connect(dial, 5, "x", time.Second, time.Millisecond)
	require.Error(t, err)
	assert.NotEqual(t, ErrPipeNotFound, errors.Cause(err))
	assert.Equal(t, 1, calls)
}

func TestConnectDiscoversTargets(t *testing.T) {
	agents := newFakeAgents(10, 20)
	c := newTestController(agents, 10, 20, 30)
	defer c.Close()

	n, err := c.Connect()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint32{10, 20}, c.Pids())
}

func TestTypeTextBroadcasts(t *testing.T) {
	agents := newFakeAgents(10, 20)
	c := newTestController(agents)
	defer c.Close()
	_, err := c.Connect(10, 20)
	require.NoError(t, err)

	sent, err := c.TypeText(0, "hi")
	require.NoError(t, err)
	assert.Equal(t, []uint32{10, 20}, sent)
	assert.Equal(t, []string{"TYPE:hi"}, waitFrames(t, agents, 10, 1))
	assert.Equal(t, []string{"TYPE:hi"}, waitFrames(t, agents, 20, 1))
}

func TestActivateMenuSingleTarget(t *testing.T) {
	agents := newFakeAgents(10)
	c := newTestController(agents)
	defer c.Close()

	sent, err := c.ActivateMenu(10, 42)
	require.NoError(t, err)
	assert.Equal(t, []uint32{10}, sent)
	assert.Equal(t, []string{"MENU:42"}, waitFrames(t, agents, 10, 1))
}

func TestBroadcastDropsDeadClients(t *testing.T) {
	agents := newFakeAgents(10, 20)
	c := newTestController(agents)
	defer c.Close()
	_, err := c.Connect(10, 20)
	require.NoError(t, err)

	agents.kill(20)
	sent, err := c.Broadcast("TYPE:x")
	require.NoError(t, err)
	assert.Equal(t, []uint32{10}, sent)
	assert.Equal(t, []uint32{10}, c.Pids())
}

func TestBroadcastWithoutClients(t *testing.T) {
	c := newTestController(newFakeAgents())
	_, err := c.Broadcast("TYPE:x")
	assert.Equal(t, ErrNoTargets, errors.Cause(err))
}

func TestQueryInfo(t *testing.T) {
	agents := newFakeAgents(10)
	c := newTestController(agents)
	defer c.Close()

	r, err := c.QueryInfo(10)
	require.NoError(t, err)
	assert.Equal(t, Reply{Pid: 10, HWND: 77, Title: "Calculator"}, r)
	assert.True(t, r.Resolved())
}

func TestQueryInfoUnknownPid(t *testing.T) {
	c := newTestController(newFakeAgents())
	_, err := c.QueryInfo(99)
	assert.Equal(t, ErrPipeNotFound, errors.Cause(err))
}

func TestSendRejectsOversizedFrame(t *testing.T) {
	agents := newFakeAgents(10)
	c := newTestController(agents)
	defer c.Close()

	err := c.Send(10, "TYPE:"+strings.Repeat("a", channel.BufferSize))
	assert.Error(t, err)
}

func TestEndpointNameUsesPrefix(t *testing.T) {
	c := newTestController(newFakeAgents())
	c.Config.PipePrefix = `\\.\pipe\Other_`
	assert.Equal(t, `\\.\pipe\Other_12`, c.EndpointName(12))
}
