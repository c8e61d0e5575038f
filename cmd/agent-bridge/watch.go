package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/merge"
	"github.com/choplin/agent-bridge/internal/usecase"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		target   string
		strategy string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-merge whenever local vault content changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Watching local vaults. Press Ctrl+C to stop...")
			return usecase.NewProject(app).Watch(ctx, usecase.WatchOptions{
				TargetOptions: usecase.TargetOptions{Target: target, Strategy: strategy},
				Debounce:      debounce,
				OnMerge: func(dest string, rep *merge.Report, err error) {
					stamp := time.Now().Format(time.TimeOnly)
					if err != nil {
						fmt.Fprintf(out, "%s %s %v\n", stamp, red("merge failed:"), err)
						return
					}
					fmt.Fprintf(out, "%s merged %d entries into %s\n", stamp, rep.Total(), dest)
					if ferr := rep.Err(); ferr != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), yellow(ferr.Error()))
					}
				},
			})
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Destination directory (default from settings, .agent)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Merge strategy: project-wins, vault-wins or vault-only")
	cmd.Flags().DurationVar(&debounce, "debounce", usecase.DefaultDebounce, "Quiet period before re-merging")

	return cmd
}
