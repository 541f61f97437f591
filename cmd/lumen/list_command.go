package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lumen/internal/library"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List library items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.ListMediaItems(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Library is empty")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				captured := ""
				if item.Year > 0 {
					captured = fmt.Sprintf("%04d-%02d-%02d", item.Year, item.Month, item.Day)
				}
				rows = append(rows, []string{
					item.DisplayName,
					item.Album,
					captured,
					item.LocationName,
					itemFlags(item),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{column("Name"), column("Album"), column("Captured"), column("Location"), column("Flags")},
				rows,
			))
			return nil
		},
	}
}

func itemFlags(item *library.MediaItem) string {
	var flags []string
	if item.Favorite {
		flags = append(flags, "favorite")
	}
	if item.Archived {
		flags = append(flags, "archived")
	}
	if item.Trashed {
		flags = append(flags, "trashed")
	}
	return strings.Join(flags, ",")
}
