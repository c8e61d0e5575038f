package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/content"
	"github.com/choplin/agent-bridge/internal/services"
	"github.com/choplin/agent-bridge/internal/usecase"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var (
		target string
		format string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project content, vault freshness and content issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			st, err := usecase.NewProject(app).Status(cmd.Context(), usecase.TargetOptions{Target: target})
			if err != nil {
				return err
			}
			if format == "json" {
				return outputJSON(cmd, st)
			}
			outputStatus(cmd, st)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Project agent directory (default from settings, .agent)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func outputStatus(cmd *cobra.Command, st *services.ProjectStatus) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Project: %s\n", st.Target)
	if !st.Initialized {
		fmt.Fprintln(out, yellow("  not initialized; run 'agent-bridge update'"))
	} else {
		parts := make([]string, 0, len(content.Categories))
		for _, c := range content.Categories {
			parts = append(parts, fmt.Sprintf("%d %s", st.Counts[c], c))
		}
		fmt.Fprintf(out, "  %s\n", strings.Join(parts, ", "))
		if len(st.MCPServers) > 0 {
			fmt.Fprintf(out, "  MCP servers: %s\n", strings.Join(st.MCPServers, ", "))
		}
	}
	fmt.Fprintln(out)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Vault", "Kind", "Priority", "Synced", "Last Run"})
	for _, v := range st.Vaults {
		name := v.Name
		if !v.Enabled {
			name = faint(v.Name + " (disabled)")
		}
		lastRun := "-"
		if v.LastRun != nil {
			if v.LastRun.OK {
				lastRun = green(v.LastRun.Action)
			} else {
				lastRun = red(wrapString(v.LastRun.Message, 40))
			}
		}
		t.AppendRow(table.Row{name, string(v.Kind), strconv.Itoa(v.Priority), syncedLabel(v), lastRun})
	}
	t.Render()

	if stale := st.StaleVaults(); len(stale) > 0 {
		fmt.Fprintf(out, "\n%s %s\n", yellow("Stale:"), strings.Join(stale, ", "))
	}
	if len(st.Issues) > 0 {
		fmt.Fprintf(out, "\n%s\n", yellow("Content issues:"))
		for _, issue := range st.Issues {
			fmt.Fprintf(out, "  %s\n", issue)
		}
	}
}
