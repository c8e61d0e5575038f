package main

import (
	"github.com/spf13/cobra"
)

func newVaultCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage knowledge vaults",
	}

	cmd.AddCommand(newVaultAddCmd(opts))
	cmd.AddCommand(newVaultRemoveCmd(opts))
	cmd.AddCommand(newVaultListCmd(opts))
	cmd.AddCommand(newVaultSyncCmd(opts))

	return cmd
}
