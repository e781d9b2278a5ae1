package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/flemzord/taskmaster/internal/core"
	"github.com/flemzord/taskmaster/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	var schedule bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the job tools over MCP on stdin/stdout",
		Long: `Serve list_jobs, get_status, run_job and recent_runs as Model Context
Protocol tools on stdio. Logs go to stderr. By default the scheduler loop is
not started, so the process only runs jobs on request; pass --schedule to
also fire jobs on their triggers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := build(ctx, cmd)
			if err != nil {
				return err
			}

			srv, err := mcpserver.New(a.Orchestrator, mcpserver.Options{
				Version: version,
				Logger:  a.Logger.With("component", "mcp"),
			})
			if err != nil {
				_ = a.Close(context.WithoutCancel(ctx))
				return err
			}

			if !schedule {
				defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
				return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			}

			lc := core.NewApp(a.Logger)
			lc.Add(a.Components(false)...)
			if err := lc.Start(ctx); err != nil {
				return err
			}
			serveErr := srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if err := lc.Stop(context.WithoutCancel(ctx)); err != nil && serveErr == nil {
				return err
			}
			return serveErr
		},
	}
	cmd.Flags().BoolVar(&schedule, "schedule", false, "Also run the scheduler loop")
	return cmd
}
