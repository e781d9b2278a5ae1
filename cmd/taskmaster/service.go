package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/taskmaster/pkg/app"
)

// program adapts app.Run to the service manager's start/stop callbacks.
type program struct {
	params app.RunParams
	logger service.Logger

	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

// Start must not block.
func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := app.Run(ctx, p.params)
		if err != nil && ctx.Err() == nil {
			if p.logger != nil {
				_ = p.logger.Error(err)
			}
			p.done <- err
			os.Exit(1)
		}
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func serviceConfig(configPath string) (*service.Config, error) {
	args := []string{"service", "run"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "taskmaster",
		DisplayName: "Taskmaster",
		Description: "Scheduled maintenance job orchestrator",
		Arguments:   args,
	}, nil
}

func newService(cmd *cobra.Command) (service.Service, *program, error) {
	cfgPath := configFlag(cmd)
	sc, err := serviceConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	prg := &program{params: runParams(cfgPath)}
	s, err := service.New(prg, sc)
	if err != nil {
		return nil, nil, fmt.Errorf("service: %w", err)
	}
	return s, prg, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage taskmaster as a system service",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, _, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the system service is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil {
				return fmt.Errorf("service status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Entry point used by the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, prg, err := newService(cmd)
			if err != nil {
				return err
			}
			if prg.logger, err = s.Logger(nil); err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func statusText(st service.Status) string {
	names := map[service.Status]string{
		service.StatusRunning: "running",
		service.StatusStopped: "stopped",
	}
	if name, ok := names[st]; ok {
		return name
	}
	return "unknown"
}

