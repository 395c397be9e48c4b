package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/r0lh/uiinject/injector"
)

var (
	payloadFlag     string
	waitFlag        bool
	waitTimeoutFlag time.Duration
	noValidateFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "injector <pid>",
	Short: "Load the UI agent into a running process",
	Long: `Injector writes the agent library path into the target process and starts
the system loader there on a remote thread. The agent then serves the
\\.\pipe\GenericInputPipe_<pid> endpoint.

The agent library must match the target's architecture.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInject,
}

func init() {
	rootCmd.Flags().StringVarP(&payloadFlag, "payload", "f", "", "agent library name or path (default "+injector.DefaultPayloadName+" next to the injector)")
	rootCmd.Flags().BoolVarP(&waitFlag, "wait", "w", false, "wait for the remote loader and verify the agent loaded")
	rootCmd.Flags().DurationVar(&waitTimeoutFlag, "wait-timeout", injector.DefaultWaitTimeout, "how long --wait waits")
	rootCmd.Flags().BoolVar(&noValidateFlag, "no-validate", false, "skip the PE checks on the agent library")
}

func runInject(cmd *cobra.Command, args []string) error {
	pid, err := injector.ParsePid(args[0])
	if err != nil {
		return err
	}

	j := injector.New(injector.DefaultAPI(), injector.DefaultModules(), injector.Options{
		Payload:      payloadFlag,
		SkipValidate: noValidateFlag,
		Wait:         waitFlag,
		WaitTimeout:  waitTimeoutFlag,
	})
	res, err := j.Inject(pid)
	if err != nil {
		return err
	}

	if res.Verified {
		fmt.Printf("[+] Success: agent loaded in PID %d (loader returned %#x)\n", res.Pid, res.ExitCode)
	} else {
		fmt.Printf("[+] Success: remote thread started in PID %d, agent loads asynchronously\n", res.Pid)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if injector.KindOf(err) == 0 {
			fmt.Fprintf(os.Stderr, "[!] ERROR : %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
