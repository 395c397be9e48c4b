// Package tools exposes the controller and the injector as MCP tools.
package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/r0lh/uiinject/injector"
	"github.com/r0lh/uiinject/internal/controller"
)

// Controller is the part of controller.Controller the tools drive.
type Controller interface {
	Targets() ([]controller.Target, error)
	Connect(pids ...uint32) (int, error)
	TypeText(pid uint32, text string) ([]uint32, error)
	ActivateMenu(pid uint32, id int) ([]uint32, error)
	QueryInfo(pid uint32) (controller.Reply, error)
}

// Injector loads and stops agents.
type Injector interface {
	Inject(pid uint32) (*injector.Result, error)
	Eject(pid uint32) error
}

// ListTargetsInput defines input for list_targets.
type ListTargetsInput struct{}

// ListTargetsOutput defines output for list_targets.
type ListTargetsOutput struct {
	Count   int                 `json:"count"`
	Targets []controller.Target `json:"targets"`
}

// TypeTextInput defines input for type_text.
type TypeTextInput struct {
	Text string `json:"text" jsonschema:"Text to type, one character message per byte"`
	Pid  uint32 `json:"pid,omitempty" jsonschema:"Target process id (omit to broadcast to every target)"`
}

// ActivateMenuInput defines input for activate_menu.
type ActivateMenuInput struct {
	ID  int    `json:"id" jsonschema:"Menu command identifier"`
	Pid uint32 `json:"pid,omitempty" jsonschema:"Target process id (omit to broadcast to every target)"`
}

// SendOutput reports which targets got a command.
type SendOutput struct {
	Sent []uint32 `json:"sent"`
}

// QueryInfoInput defines input for query_info.
type QueryInfoInput struct {
	Pid uint32 `json:"pid" jsonschema:"Target process id"`
}

// InjectInput defines input for inject and eject.
type InjectInput struct {
	Pid uint32 `json:"pid" jsonschema:"Target process id"`
}

// InjectOutput defines output for inject.
type InjectOutput struct {
	Pid      uint32 `json:"pid"`
	Payload  string `json:"payload"`
	Verified bool   `json:"verified"`
}

// EjectOutput defines output for eject.
type EjectOutput struct {
	Pid     uint32 `json:"pid"`
	Stopped bool   `json:"stopped"`
}

// Register adds the UI automation tools to server. inj may be nil, in
// which case inject and eject are not offered.
func Register(server *mcp.Server, ctl Controller, inj Injector) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_targets",
		Description: "List processes that have the UI agent loaded.",
	}, makeListTargetsHandler(ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name: "type_text",
		Description: `Type text into a target's main window without focusing it.
Examples:
  type_text {text: "123+45="}
  type_text {text: "hello", pid: 4242}`,
	}, makeTypeTextHandler(ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "activate_menu",
		Description: "Activate a menu command by numeric id in a target's main window.",
	}, makeActivateMenuHandler(ctl))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_info",
		Description: "Report the pid, main window handle and title of a target.",
	}, makeQueryInfoHandler(ctl))

	if inj == nil {
		return
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "inject",
		Description: "Load the UI agent into a running process.",
	}, makeInjectHandler(inj))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "eject",
		Description: "Stop the UI agent's channel in a process.",
	}, makeEjectHandler(inj))
}

func makeListTargetsHandler(ctl Controller) func(context.Context, *mcp.CallToolRequest, ListTargetsInput) (*mcp.CallToolResult, ListTargetsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListTargetsInput) (*mcp.CallToolResult, ListTargetsOutput, error) {
		targets, err := ctl.Targets()
		if err != nil {
			return errorResult(fmt.Sprintf("discovery failed: %v", err)), ListTargetsOutput{}, nil
		}
		if targets == nil {
			targets = []controller.Target{}
		}
		return nil, ListTargetsOutput{Count: len(targets), Targets: targets}, nil
	}
}

// connectFor makes sure there is something to send to: the one pid, or
// every discovered target for a broadcast.
func connectFor(ctl Controller, pid uint32) error {
	var n int
	var err error
	if pid == 0 {
		n, err = ctl.Connect()
	} else {
		n, err = ctl.Connect(pid)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return controller.ErrNoTargets
	}
	return nil
}

func makeTypeTextHandler(ctl Controller) func(context.Context, *mcp.CallToolRequest, TypeTextInput) (*mcp.CallToolResult, SendOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input TypeTextInput) (*mcp.CallToolResult, SendOutput, error) {
		if input.Text == "" {
			return errorResult("text required"), SendOutput{}, nil
		}
		if err := connectFor(ctl, input.Pid); err != nil {
			return errorResult(err.Error()), SendOutput{}, nil
		}
		sent, err := ctl.TypeText(input.Pid, input.Text)
		if err != nil {
			return errorResult(fmt.Sprintf("type failed: %v", err)), SendOutput{}, nil
		}
		return nil, SendOutput{Sent: sent}, nil
	}
}

func makeActivateMenuHandler(ctl Controller) func(context.Context, *mcp.CallToolRequest, ActivateMenuInput) (*mcp.CallToolResult, SendOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ActivateMenuInput) (*mcp.CallToolResult, SendOutput, error) {
		if err := connectFor(ctl, input.Pid); err != nil {
			return errorResult(err.Error()), SendOutput{}, nil
		}
		sent, err := ctl.ActivateMenu(input.Pid, input.ID)
		if err != nil {
			return errorResult(fmt.Sprintf("menu failed: %v", err)), SendOutput{}, nil
		}
		return nil, SendOutput{Sent: sent}, nil
	}
}

func makeQueryInfoHandler(ctl Controller) func(context.Context, *mcp.CallToolRequest, QueryInfoInput) (*mcp.CallToolResult, controller.Reply, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input QueryInfoInput) (*mcp.CallToolResult, controller.Reply, error) {
		if input.Pid == 0 {
			return errorResult("pid required"), controller.Reply{}, nil
		}
		r, err := ctl.QueryInfo(input.Pid)
		if err != nil {
			return errorResult(fmt.Sprintf("query failed: %v", err)), controller.Reply{}, nil
		}
		return nil, r, nil
	}
}

func makeInjectHandler(inj Injector) func(context.Context, *mcp.CallToolRequest, InjectInput) (*mcp.CallToolResult, InjectOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input InjectInput) (*mcp.CallToolResult, InjectOutput, error) {
		if input.Pid == 0 {
			return errorResult("pid required"), InjectOutput{}, nil
		}
		res, err := inj.Inject(input.Pid)
		if err != nil {
			return errorResult(fmt.Sprintf("inject failed: %v", err)), InjectOutput{}, nil
		}
		return nil, InjectOutput{Pid: res.Pid, Payload: res.Payload, Verified: res.Verified}, nil
	}
}

func makeEjectHandler(inj Injector) func(context.Context, *mcp.CallToolRequest, InjectInput) (*mcp.CallToolResult, EjectOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input InjectInput) (*mcp.CallToolResult, EjectOutput, error) {
		if input.Pid == 0 {
			return errorResult("pid required"), EjectOutput{}, nil
		}
		if err := inj.Eject(input.Pid); err != nil {
			return errorResult(fmt.Sprintf("eject failed: %v", err)), EjectOutput{}, nil
		}
		return nil, EjectOutput{Pid: input.Pid, Stopped: true}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
