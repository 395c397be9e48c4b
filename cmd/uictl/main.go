package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/r0lh/uiinject/injector"
	"github.com/r0lh/uiinject/internal/config"
	"github.com/r0lh/uiinject/internal/controller"
)

const (
	appName    = "uictl"
	appVersion = "0.1.0"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Drive injected UI agents from the host",
	Long: `uictl finds processes carrying the UI agent and sends them commands over
their named pipes:
  - type text or activate menu commands without focusing the window
  - query the main window handle and title
  - inject or stop the agent
  - serve all of the above as MCP tools over stdio`,
	Version:       appVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.FileName+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log connection details to stderr")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(typeCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(ejectCmd)
	rootCmd.AddCommand(mcpCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newController() (*controller.Controller, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	return controller.New(cfg, newLogger()), cfg, nil
}

func newInjector(cfg config.Config, wait bool) *injector.Injector {
	return injector.New(injector.DefaultAPI(), injector.DefaultModules(), injector.Options{
		Payload:     cfg.AgentName,
		Wait:        wait || cfg.VerifyLoad,
		WaitTimeout: cfg.WaitTimeout,
	})
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
