package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show library and stage progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			cmdCtx := cmd.Context()

			total, err := store.CountMediaItems(cmdCtx)
			if err != nil {
				return err
			}
			labeled, err := store.CountLabeledURIs(cmdCtx)
			if err != nil {
				return err
			}
			located, err := store.CountResolvedLocations(cmdCtx)
			if err != nil {
				return err
			}

			for _, line := range renderSectionHeader("Library", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Items", statusInfo, strconv.Itoa(total), colorize))
			fmt.Fprintln(out, renderStatusLine("Labeled", statusInfo, strconv.Itoa(labeled), colorize))
			fmt.Fprintln(out, renderStatusLine("Located", statusInfo, strconv.Itoa(located), colorize))
			fmt.Fprintln(out)

			statuses, err := store.AllStageStatuses(cmdCtx)
			if err != nil {
				return err
			}
			for _, line := range renderSectionHeader("Stages", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(statuses) == 0 {
				fmt.Fprintln(out, detailIndent+"No stage has run yet")
				return nil
			}

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				progress := fmt.Sprintf("%d/%d", status.ProcessedItems, status.TotalItems)
				updated := ""
				if !status.UpdatedAt.IsZero() {
					updated = status.UpdatedAt.Local().Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{
					status.StageName,
					renderStageState(status.Status, colorize),
					progress,
					updated,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{column("Stage"), column("State"), numericColumn("Progress"), column("Updated")},
				rows,
			))
			return nil
		},
	}
}
