// Package main is the entry point for the taskmaster CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/taskmaster/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskmaster",
		Short:         "Scheduled maintenance job orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(
		versionCmd(),
		startCmd(),
		jobsCmd(),
		runCmd(),
		configCmd(),
		archiveCmd(),
		mcpCmd(),
		serviceCmd(),
	)
	return root
}

func configFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskmaster %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the scheduler and HTTP gateway in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), runParams(configFlag(cmd)))
		},
	}
}

func runParams(configPath string) app.RunParams {
	return app.RunParams{
		ConfigPath: configPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}
}

// build loads the configuration and wires an unstarted instance.
func build(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, _, err := app.LoadConfig(configFlag(cmd))
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, app.BuildOptions{Version: version, LogOutput: cmd.ErrOrStderr()})
}
