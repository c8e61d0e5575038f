package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/usecase"
)

func newVaultSyncCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [name]",
		Short: "Fetch remote vaults and validate local ones",
		Long:  "Sync every enabled vault, or only the named one (even when disabled).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			results := usecase.NewVaults(app).Sync(cmd.Context(), name)
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No enabled vaults")
				return nil
			}
			if failed := printSyncResults(cmd.OutOrStdout(), results); failed > 0 {
				return fmt.Errorf("%d of %d vault syncs failed", failed, len(results))
			}
			return nil
		},
	}

	return cmd
}
