package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/eigenein/myiot/internal/cmd/client"
	serverrun "github.com/eigenein/myiot/internal/cmd/server"
	cfgpkg "github.com/eigenein/myiot/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "myiot",
		Short:        "myiot home automation hub",
		Long:         "myiot collects events from producers, stores actual values and logs, and runs rules on every event.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newRunCommand(), newVersionCommand())
	clientcmd.AddCommands(rootCmd, clientcmd.BaseURLFromEnv)
	return rootCmd
}

func newRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hub (producers, rules and HTTP API)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)
			applyFlags(cmd, &cfg)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg, Version: version}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	runCmd.Flags().String("config", os.Getenv("MYIOT_CONFIG"), "Config file (.json, .yaml or .yml)")
	runCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	runCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	runCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	runCmd.Flags().Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms (default 5)")
	runCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	runCmd.Flags().String("log-format", "", "Log format: text|json (default text)")
	return runCmd
}

// applyFlags overrides cfg with explicitly set flags; flags win over env and file.
func applyFlags(cmd *cobra.Command, cfg *cfgpkg.Config) {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("http") {
		cfg.HTTPAddr, _ = flags.GetString("http")
	}
	if flags.Changed("fsync") {
		cfg.Fsync, _ = flags.GetString("fsync")
	}
	if flags.Changed("fsync-interval-ms") {
		cfg.FsyncIntervalMs, _ = flags.GetInt("fsync-interval-ms")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
