package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/usecase"
	"github.com/choplin/agent-bridge/internal/vault"
)

func newVaultAddCmd(opts *rootOptions) *cobra.Command {
	var (
		description string
		priority    int
		subpath     string
		disabled    bool
	)

	cmd := &cobra.Command{
		Use:   "add <name> <source>",
		Short: "Register a vault",
		Long: `Register a vault. The source is a git URL (https://, git@, ssh://, git://, file://),
a local directory, or builtin:<kit> for a kit shipped with agent-bridge.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			v, err := usecase.NewVaults(app).Add(cmd.Context(), usecase.AddInput{
				Name:           args[0],
				Source:         args[1],
				Description:    description,
				Priority:       priority,
				ContentSubpath: subpath,
				Disabled:       disabled,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s vault '%s' (priority %d)\n", v.Kind(), v.Name, v.Priority)
			if v.IsRemote() {
				fmt.Fprintf(cmd.OutOrStdout(), "Run 'agent-bridge vault sync %s' to fetch it.\n", v.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Description for the vault")
	cmd.Flags().IntVarP(&priority, "priority", "p", vault.DefaultPriority, "Merge priority, lower merges first")
	cmd.Flags().StringVar(&subpath, "subpath", vault.DefaultContentSubpath, "Directory inside the source holding the content")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register without enabling")

	return cmd
}
