package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/r0lh/uiinject/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server over stdio",
	Long: `Run as an MCP (Model Context Protocol) server so an assistant can list
injected processes, type into them, activate menus, query their windows and
inject the agent.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctl, cfg, err := newController()
	if err != nil {
		return err
	}
	defer ctl.Close()

	// stdout carries the protocol, so injector progress goes to stderr.
	inj := newInjector(cfg, false)
	inj.Out = os.Stderr

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `Background UI automation for processes carrying the UI agent.

Available tools:
- list_targets: processes with the agent loaded
- type_text: type text into one target or broadcast to all
- activate_menu: post a menu command id
- query_info: main window handle and title of a target
- inject: load the agent into a process
- eject: stop the agent's channel in a process`,
		},
	)
	tools.Register(server, ctl, inj)

	log := newLogger()
	log.Info("starting MCP server", "version", appVersion)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
