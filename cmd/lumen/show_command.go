package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <uri>",
		Short: "Show one item's enrichment data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			cmdCtx := cmd.Context()
			uri := args[0]
			item, err := store.GetByURI(cmdCtx, uri)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("no item with uri %s", uri)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(item.DisplayName, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("URI", statusInfo, item.URI, colorize))
			fmt.Fprintln(out, renderStatusLine("Path", statusInfo, item.Path, colorize))
			fmt.Fprintln(out, renderStatusLine("Type", statusInfo, item.MimeType, colorize))
			if item.Width > 0 && item.Height > 0 {
				fmt.Fprintln(out, renderStatusLine("Dimensions", statusInfo,
					fmt.Sprintf("%dx%d", item.Width, item.Height), colorize))
			}
			if item.Album != "" {
				fmt.Fprintln(out, renderStatusLine("Album", statusInfo, item.Album, colorize))
			}
			if item.Year > 0 {
				fmt.Fprintln(out, renderStatusLine("Captured", statusInfo,
					fmt.Sprintf("%04d-%02d-%02d", item.Year, item.Month, item.Day), colorize))
			}
			if item.HasCoordinates() {
				coords := fmt.Sprintf("%.5f, %.5f", *item.Latitude, *item.Longitude)
				fmt.Fprintln(out, renderStatusLine("Coordinates", statusInfo, coords, colorize))
				switch {
				case item.LocationName != "":
					fmt.Fprintln(out, renderStatusLine("Location", statusOK, item.LocationName, colorize))
				case item.LocationResolved:
					fmt.Fprintln(out, renderStatusLine("Location", statusWarn, "could not be resolved", colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Location", statusInfo, "pending", colorize))
				}
			}
			fmt.Fprintln(out, renderStatusLine("Favorite", statusInfo, yesNo(item.Favorite), colorize))
			fmt.Fprintln(out, renderStatusLine("Archived", statusInfo, yesNo(item.Archived), colorize))
			if item.Trashed {
				fmt.Fprintln(out, renderStatusLine("Trashed", statusWarn, "", colorize))
			}

			labels, err := store.LabelsForURI(cmdCtx, uri)
			if err != nil {
				return err
			}
			if len(labels) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Labels", colorize) {
					fmt.Fprintln(out, line)
				}
				rows := make([][]string, 0, len(labels))
				for _, label := range labels {
					rows = append(rows, []string{
						label.Label,
						strconv.FormatFloat(label.Confidence, 'f', 2, 64),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{column("Label"), numericColumn("Confidence")},
					rows,
				))
			}

			annotations, err := store.AnnotationsForURI(cmdCtx, uri)
			if err != nil {
				return err
			}
			if len(annotations) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Recognized Text", colorize) {
					fmt.Fprintln(out, line)
				}
				rows := make([][]string, 0, len(annotations))
				for _, ann := range annotations {
					rows = append(rows, []string{
						string(ann.Kind),
						ann.Text,
						strconv.FormatFloat(ann.Confidence, 'f', 2, 64),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{column("Kind"), column("Text"), numericColumn("Confidence")},
					rows,
				))
			}
			return nil
		},
	}
}
