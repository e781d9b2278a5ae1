package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/orchestrator"
)

func jobsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the job catalog with triggers and next run times",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

			jobs := a.Orchestrator.ListJobs()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), jobs)
			}
			return printJobs(cmd.OutOrStdout(), jobs)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printJobs(w io.Writer, jobs []orchestrator.JobInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTRIGGER\tNEXT RUN")
	for _, j := range jobs {
		next := j.NextRun
		if j.NextRunAt != nil {
			next = j.NextRunAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.ID, j.Name, j.Trigger, next)
	}
	return tw.Flush()
}

func runCmd() *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job immediately, outside the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := build(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			run, err := a.Orchestrator.RunManually(ctx, args[0])
			if err != nil {
				return err
			}
			// The run lives only as long as this process, so it is always
			// awaited; --wait only changes what is printed.
			if !wait {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s started (run %s)\n", args[0], run.ID)
			}

			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			done, err := a.Orchestrator.Wait(waitCtx, run.ID)
			if err != nil {
				return fmt.Errorf("waiting for %s: %w", run.ID, err)
			}
			if wait {
				if err := writeJSON(cmd.OutOrStdout(), done); err != nil {
					return err
				}
			}
			if done.Status == history.StatusFailed {
				return fmt.Errorf("job %s failed: %s", done.Job, done.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Print the finished run as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time to wait for the run")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
