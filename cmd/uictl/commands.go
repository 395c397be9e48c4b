package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/r0lh/uiinject/injector"
	"github.com/r0lh/uiinject/internal/controller"
)

var (
	pidFlag  uint32
	waitFlag bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List processes with the agent loaded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, _, err := newController()
		if err != nil {
			return err
		}
		targets, err := ctl.Targets()
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Println("[-] No processes with the agent loaded")
			return nil
		}
		for _, t := range targets {
			fmt.Printf("%d\t%s\t%s\n", t.Pid, t.Name, t.Module)
		}
		return nil
	},
}

var typeCmd = &cobra.Command{
	Use:   "type <text>",
	Short: "Type text into one target or every target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(func(ctl *controller.Controller) ([]uint32, error) {
			return ctl.TypeText(pidFlag, args[0])
		})
	},
}

var menuCmd = &cobra.Command{
	Use:   "menu <id>",
	Short: "Activate a menu command in one target or every target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid menu id %q", args[0])
		}
		return send(func(ctl *controller.Controller) ([]uint32, error) {
			return ctl.ActivateMenu(pidFlag, id)
		})
	},
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <raw>",
	Short: "Send a raw command frame to every target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pidFlag = 0
		return send(func(ctl *controller.Controller) ([]uint32, error) {
			return ctl.Broadcast(args[0])
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <pid>",
	Short: "Show a target's main window handle and title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := injector.ParsePid(args[0])
		if err != nil {
			return err
		}
		ctl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctl.Close()

		r, err := ctl.QueryInfo(pid)
		if err != nil {
			return err
		}
		fmt.Printf("PID:   %d\nHWND:  %#x\nTitle: %s\n", r.Pid, r.HWND, r.Title)
		return nil
	},
}

var injectCmd = &cobra.Command{
	Use:   "inject <pid>",
	Short: "Load the agent into a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := injector.ParsePid(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		res, err := newInjector(cfg, waitFlag).Inject(pid)
		if err != nil {
			return err
		}
		fmt.Printf("[+] Success: injected %s into PID %d (verified: %t)\n", res.Payload, res.Pid, res.Verified)
		return nil
	},
}

var ejectCmd = &cobra.Command{
	Use:   "eject <pid>",
	Short: "Stop the agent's channel in a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := injector.ParsePid(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return newInjector(cfg, false).Eject(pid)
	},
}

func init() {
	for _, c := range []*cobra.Command{typeCmd, menuCmd} {
		c.Flags().Uint32VarP(&pidFlag, "pid", "p", 0, "target process id (default: every target)")
	}
	injectCmd.Flags().BoolVarP(&waitFlag, "wait", "w", false, "wait for the remote loader and verify the agent loaded")
}

// send connects to the --pid target, or to every discovered target, and
// runs fn against the controller.
func send(fn func(*controller.Controller) ([]uint32, error)) error {
	ctl, _, err := newController()
	if err != nil {
		return err
	}
	defer ctl.Close()

	var n int
	if pidFlag != 0 {
		n, err = ctl.Connect(pidFlag)
	} else {
		n, err = ctl.Connect()
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return controller.ErrNoTargets
	}

	sent, err := fn(ctl)
	if err != nil {
		return err
	}
	pids := make([]string, len(sent))
	for i, pid := range sent {
		pids[i] = strconv.FormatUint(uint64(pid), 10)
	}
	fmt.Printf("[+] Sent to %d process(es): %s\n", len(sent), strings.Join(pids, ", "))
	return nil
}
