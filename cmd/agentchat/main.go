// Package main is the entry point for the agentchat CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/agentchat/internal/core"
	"github.com/flemzord/agentchat/pkg/app"

	_ "github.com/flemzord/agentchat/modules/provider/anthropic"
	_ "github.com/flemzord/agentchat/modules/provider/openai_compatible"
	_ "github.com/flemzord/agentchat/modules/transcript/sqlite"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agentchat",
		Short:         "Session manager and streaming bridge for a conversational agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "agentchat %s (commit: %s, built: %s)\n", version, commit, date)
	mods := core.GetModules()
	if len(mods) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	for _, mod := range mods {
		fmt.Fprintf(w, "  %s\n", mod.ID)
	}
}

// runFlags are shared by start and service run.
type runFlags struct {
	config   string
	dataDir  string
	logLevel string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Override data_dir")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

func (f *runFlags) params() app.RunParams {
	return app.RunParams{
		ConfigPath: f.config,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    f.dataDir,
		LogLevel:   f.logLevel,
	}
}

func startCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"serve"},
		Short:   "Start the HTTP gateway and chat runtime",
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(flags.params())
		},
	}
	flags.bind(cmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and wire every module without starting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := app.RunParams{Version: version, Commit: commit, Date: date, LogOutput: io.Discard}
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			return checkConfig(cmd.Context(), cmd.OutOrStdout(), params)
		},
	}
}

func checkConfig(ctx context.Context, w io.Writer, params app.RunParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := app.Build(ctx, params)
	if err != nil {
		return err
	}
	defer rt.Abort()

	fmt.Fprintf(w, "Configuration OK (%s)\n", rt.Source)
	for _, id := range rt.ModuleIDs() {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}
