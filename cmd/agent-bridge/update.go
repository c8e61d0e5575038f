package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/content"
	"github.com/choplin/agent-bridge/internal/merge"
	"github.com/choplin/agent-bridge/internal/usecase"
)

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		target   string
		strategy string
		noSync   bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Sync all vaults and merge them into the project",
		Long: `Sync every enabled vault, then merge their content into the target directory.
Relative targets resolve against the root of the enclosing git work tree.

Strategies:
  project-wins  keep entries that already exist in the project (default)
  vault-wins    overwrite with vault entries; the highest priority number wins
  vault-only    clear agents, skills, workflows and rules first`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			project := usecase.NewProject(app)
			topts := usecase.TargetOptions{Target: target, Strategy: strategy}
			out := cmd.OutOrStdout()

			if noSync {
				dest, rep, err := project.Merge(cmd.Context(), topts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Merged into %s\n", dest)
				printMergeReport(cmd, rep)
				return nil
			}

			res, err := project.Update(cmd.Context(), topts)
			if res != nil && len(res.Sync) > 0 {
				printSyncResults(out, res.Sync)
			}
			if errors.Is(err, usecase.ErrAllSyncsFailed) {
				return fmt.Errorf("%w; nothing was merged", err)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nMerged into %s (%s)\n", res.Target, res.Strategy)
			printMergeReport(cmd, res.Merge)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Destination directory (default from settings, .agent)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Merge strategy: project-wins, vault-wins or vault-only")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Merge cached content without syncing first")

	return cmd
}

func printMergeReport(cmd *cobra.Command, rep *merge.Report) {
	out := cmd.OutOrStdout()
	for _, c := range content.Categories {
		fmt.Fprintf(out, "  %-10s %d copied\n", c, rep.Counts[c])
	}
	if rep.Skipped > 0 {
		fmt.Fprintf(out, "  %s\n", faint(fmt.Sprintf("%d existing entries kept", rep.Skipped)))
	}
	if rep.MCPConfigFrom != "" {
		fmt.Fprintf(out, "  %s from %s\n", content.MCPConfigFile, rep.MCPConfigFrom)
	}
	for _, sv := range rep.SkippedVaults {
		fmt.Fprintf(out, "  %s\n", yellow("Skip "+sv.String()))
	}
	if failures := rep.Err(); failures != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), yellow("Some entries could not be merged:"))
		fmt.Fprintln(cmd.ErrOrStderr(), failures)
	}
}
