// Command agent is built as the UI agent library:
//
//	go build -buildmode=c-shared -o uiagent.dll ./cmd/agent
//
// Loading the library attaches the agent to the host process. AgentDetach
// stops it again; the library itself stays loaded.
package main

import "C"

import (
	"io"
	"os"
	"unsafe"

	"github.com/r0lh/uiinject/internal/agent"
	"github.com/r0lh/uiinject/internal/agentlog"
	"github.com/r0lh/uiinject/internal/channel"
	"github.com/r0lh/uiinject/internal/ui"
)

var (
	lifecycle *agent.Lifecycle
	logCloser io.Closer
)

func init() {
	pid := os.Getpid()
	logger, closer := agentlog.Open(pid)
	logCloser = closer

	lifecycle = agent.New(channel.Listen, channel.Dial, ui.DefaultBackend(), logger)
	if err := lifecycle.Attach(pid); err != nil {
		logger.Error("attach failed", "err", err)
	}
}

// AgentDetach has the shape of a thread start routine so it can be run
// with CreateRemoteThread. It returns 1 when the worker was joined.
//
//export AgentDetach
func AgentDetach(_ unsafe.Pointer) C.uint {
	joined := lifecycle.Detach()
	_ = logCloser.Close()
	if joined {
		return 1
	}
	return 0
}

func main() {}
