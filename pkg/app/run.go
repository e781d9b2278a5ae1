// Package app provides the shared entry point for the taskmaster commands.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/flemzord/taskmaster/internal/config"
	"github.com/flemzord/taskmaster/internal/core"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.Find searches the default locations.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// LoadConfig resolves, loads and validates the configuration file. It
// returns the path actually used.
func LoadConfig(explicit string) (*config.Config, string, error) {
	path, err := config.Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Run loads configuration, starts the orchestrator and the HTTP gateway,
// and blocks until SIGINT/SIGTERM or ctx is cancelled.
func Run(ctx context.Context, params RunParams) error {
	cfg, path, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	a, err := Build(ctx, cfg, BuildOptions{
		Version:   params.Version,
		LogOutput: params.LogOutput,
	})
	if err != nil {
		return err
	}

	a.Logger.Info("taskmaster starting",
		"version", params.Version,
		"commit", params.Commit,
		"config", path,
		"jobs", len(a.Orchestrator.ListJobs()),
	)

	lc := core.NewApp(a.Logger)
	lc.Add(a.Components(true)...)
	if err := lc.Run(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Logger.Info("taskmaster stopped")
	return nil
}

func defaultOutput(w io.Writer) io.Writer {
	if w == nil {
		return os.Stderr
	}
	return w
}
