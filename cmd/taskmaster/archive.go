package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/taskmaster/internal/store/sqlite"
	"github.com/flemzord/taskmaster/pkg/app"
)

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and maintain the SQLite run archive",
	}
	cmd.AddCommand(archivePruneCmd(), archiveStatsCmd())
	return cmd
}

func openArchive(cmd *cobra.Command) (*sqlite.Archive, error) {
	cfg, _, err := app.LoadConfig(configFlag(cmd))
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.SQLite.Enabled {
		return nil, errors.New("archive.sqlite is not enabled")
	}
	return sqlite.Open(cmd.Context(), sqlite.Config{Path: cfg.Archive.SQLite.Path})
}

func archivePruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived runs older than a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := a.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs older than %s\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	return cmd
}

func archiveStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of archived runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := a.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d archived runs\n", n)
			return nil
		},
	}
}
