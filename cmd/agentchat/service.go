package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/agentchat/pkg/app"
)

// program adapts the runtime to the service manager. Start must not
// block.
type program struct {
	params app.RunParams
	rt     *app.Runtime
}

var _ service.Interface = (*program)(nil)

func (p *program) Start(service.Service) error {
	rt, err := app.Build(context.Background(), p.params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		return err
	}
	p.rt = rt
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.rt != nil {
		p.rt.Stop()
		p.rt = nil
	}
	return nil
}

// serviceConfig describes the system service. The installed unit runs
// "agentchat service run" with the same flags.
func serviceConfig(flags runFlags) (*service.Config, error) {
	args := []string{"service", "run"}
	if flags.config != "" {
		path, err := filepath.Abs(flags.config)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		args = append(args, "--config", path)
	}
	if flags.dataDir != "" {
		path, err := filepath.Abs(flags.dataDir)
		if err != nil {
			return nil, fmt.Errorf("resolving data dir: %w", err)
		}
		args = append(args, "--data-dir", path)
	}
	if flags.logLevel != "" {
		args = append(args, "--log-level", flags.logLevel)
	}
	return &service.Config{
		Name:        "agentchat",
		DisplayName: "agentchat",
		Description: "Session manager and streaming bridge for a conversational agent.",
		Arguments:   args,
	}, nil
}

func newService(flags runFlags) (service.Service, error) {
	cfg, err := serviceConfig(flags)
	if err != nil {
		return nil, err
	}
	return service.New(&program{params: flags.params()}, cfg)
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage agentchat as a system service",
	}
	for _, action := range service.ControlAction {
		cmd.AddCommand(serviceControlCmd(action))
	}
	cmd.AddCommand(serviceRunCmd())
	return cmd
}

func serviceControlCmd(action string) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the system service", action),
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(flags)
			if err != nil {
				return err
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
			return nil
		},
	}
	if action == "install" {
		flags.bind(cmd)
	}
	return cmd
}

func serviceRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService(flags)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	flags.bind(cmd)
	return cmd
}
