package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/application"
	"github.com/choplin/agent-bridge/internal/config"
	"github.com/choplin/agent-bridge/internal/logging"
)

// rootOptions carries the persistent flags and what PersistentPreRunE
// derives from them.
type rootOptions struct {
	configFile string
	logLevel   string
	verbose    bool

	settings *config.Settings
	logger   *slog.Logger
	paths    application.Paths
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "agent-bridge",
		Short:         "agent-bridge - merge shared agent knowledge vaults into projects",
		Long:          "agent-bridge keeps a registry of git, local and builtin knowledge vaults and merges their agents, skills, workflows and rules into a project's agent directory.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Settings file (default <config dir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Shorthand for --log-level debug")

	cmd.AddCommand(newVaultCmd(opts))
	cmd.AddCommand(newUpdateCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))

	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	v, err := config.NewViper(o.configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		v.Set("log_level", o.logLevel)
	}
	if o.verbose {
		v.Set("log_level", "debug")
	}

	settings, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	level, err := logging.LevelFromString(settings.LogLevel)
	if err != nil {
		return err
	}

	o.settings = settings
	o.logger = logging.New(os.Stderr, level)
	o.paths = application.DefaultPaths()
	return nil
}

func (o *rootOptions) openApp() (*application.Context, error) {
	return application.Open(o.settings, o.paths, o.logger)
}

func closeApp(cmd *cobra.Command, app *application.Context) {
	if err := app.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
}
