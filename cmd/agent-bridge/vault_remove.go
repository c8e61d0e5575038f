package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/usecase"
	"github.com/choplin/agent-bridge/internal/vault"
)

func newVaultRemoveCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Unregister a vault and delete its cache",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			if _, ok := app.Registry.Get(name); !ok {
				return &vault.VaultNotFoundError{Name: name}
			}

			// Confirmation prompt
			if !force {
				reader := bufio.NewReader(os.Stdin)
				fmt.Fprintf(cmd.ErrOrStderr(), "Remove vault '%s' and its cache? (y/N) ", name)
				answer, err := reader.ReadString('\n')
				if err != nil {
					return err
				}

				answer = strings.TrimSpace(strings.ToLower(answer))
				if answer != "y" && answer != "yes" {
					fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
					return nil
				}
			}

			if err := usecase.NewVaults(app).Remove(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed vault '%s'\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")

	return cmd
}
