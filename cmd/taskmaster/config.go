package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/taskmaster/internal/config"
	"github.com/flemzord/taskmaster/internal/security"
	"github.com/flemzord/taskmaster/internal/tasks"
	"github.com/flemzord/taskmaster/pkg/app"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configShowCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := configFlag(cmd)
			if len(args) == 1 {
				explicit = args[0]
			}
			cfg, path, err := app.LoadConfig(explicit)
			if err != nil {
				return err
			}
			opts, err := cfg.TaskOptions()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK: %s (%d jobs)\n", path, len(tasks.Names))
			for _, name := range tasks.Names {
				fmt.Fprintf(out, "  %-22s %s\n", name, opts.Schedule(name))
			}
			return nil
		},
	}
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration with variables expanded and secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := app.LoadConfig(configFlag(cmd))
			if err != nil {
				return err
			}
			raw, err := config.ReadExpanded(path)
			if err != nil {
				return err
			}
			out, err := redactedYAML(raw, app.NewRedactor(cfg))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func redactedYAML(raw []byte, r *security.Redactor) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	r.RedactMap(doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
