package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lumen/internal/library"
)

func newItemCommand(ctx *commandContext) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Manage item flags and trash state",
	}

	itemCmd.AddCommand(newItemFlagCommand(ctx, "favorite", "Mark an item as a favorite",
		func(store *library.Store, cmd *cobra.Command, uri string, value bool) error {
			return store.SetFavorite(cmd.Context(), uri, value)
		}))
	itemCmd.AddCommand(newItemFlagCommand(ctx, "archive", "Archive an item",
		func(store *library.Store, cmd *cobra.Command, uri string, value bool) error {
			return store.SetArchived(cmd.Context(), uri, value)
		}))
	itemCmd.AddCommand(newTrashCommand(ctx))
	itemCmd.AddCommand(newRestoreCommand(ctx))

	return itemCmd
}

func newItemFlagCommand(ctx *commandContext, use, short string, apply func(*library.Store, *cobra.Command, string, bool) error) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   use + " <uri>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := apply(store, cmd, args[0], !clear); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s=%s\n", args[0], use, yesNo(!clear))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the flag instead of setting it")
	return cmd
}

func newTrashCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trash <uri>",
		Short: "Move an item to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SoftDelete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trashed %s\n", args[0])
			return nil
		},
	}
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <uri>",
		Short: "Restore an item from the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
			return nil
		},
	}
}
