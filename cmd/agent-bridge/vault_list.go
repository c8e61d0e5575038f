package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/choplin/agent-bridge/internal/services"
	"github.com/choplin/agent-bridge/internal/usecase"
	"github.com/choplin/agent-bridge/internal/vault"
)

func newVaultListCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List vaults in priority order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			statuses := usecase.NewVaults(app).List(cmd.Context())
			rows := make([]vaultRow, 0, len(statuses))
			for _, st := range statuses {
				v, ok := app.Registry.Get(st.Name)
				if !ok {
					continue
				}
				rows = append(rows, vaultRow{Vault: v, Status: st})
			}

			if format == "json" {
				return outputJSON(cmd, rows)
			}
			outputVaultTable(cmd, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

type vaultRow struct {
	Vault  vault.Vault          `json:"vault"`
	Status services.VaultStatus `json:"status"`
}

func syncedLabel(st services.VaultStatus) string {
	switch {
	case !st.Cached && st.Kind == vault.KindGit:
		return yellow("not synced")
	case !st.Cached:
		return red("missing")
	case st.Stale:
		return yellow(st.LastSynced)
	default:
		return st.LastSynced
	}
}

// vaultColumnWidths holds the widths of the columns that adapt to the terminal
type vaultColumnWidths struct {
	name        int
	source      int
	description int
}

func calculateVaultColumnWidths(termWidth int, rows []vaultRow) vaultColumnWidths {
	// Name, Kind, Priority, Enabled, Synced, Source, Description
	borderPadding := 7 * 3
	fixed := 7 + 8 + 7 + 10
	available := termWidth - borderPadding - fixed

	nameWidth := 8
	sourceWidth := 10
	for _, r := range rows {
		if w := runewidth.StringWidth(r.Vault.Name); w > nameWidth {
			nameWidth = w
		}
		if w := runewidth.StringWidth(r.Vault.Source); w > sourceWidth {
			sourceWidth = w
		}
	}
	if nameWidth > 30 {
		nameWidth = 30
	}

	// Source gets what it needs up to 60% of the remaining space
	if limit := (available - nameWidth) * 6 / 10; sourceWidth > limit {
		sourceWidth = limit
	}
	if sourceWidth < 10 {
		sourceWidth = 10
	}

	descWidth := available - nameWidth - sourceWidth
	if descWidth < 15 {
		descWidth = 15
	}

	return vaultColumnWidths{name: nameWidth, source: sourceWidth, description: descWidth}
}

func outputVaultTable(cmd *cobra.Command, rows []vaultRow) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	widths := calculateVaultColumnWidths(getTerminalWidth(), rows)

	// Widths are applied by hand: go-pretty's WidthMax miscounts wide runes.
	t.AppendHeader(table.Row{"Name", "Kind", "Priority", "Enabled", "Synced", "Source", "Description"})
	for _, r := range rows {
		enabled := "yes"
		if !r.Vault.Enabled {
			enabled = faint("no")
		}
		t.AppendRow(table.Row{
			wrapString(r.Vault.Name, widths.name),
			string(r.Vault.Kind()),
			strconv.Itoa(r.Vault.Priority),
			enabled,
			syncedLabel(r.Status),
			wrapString(r.Vault.Source, widths.source),
			runewidth.Truncate(r.Vault.Description, widths.description, "..."),
		})
	}

	t.Render()
}
