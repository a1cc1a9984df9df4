package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		if err := a.engine.Delete(ctx, sess, args[0]); err != nil {
			fatal("Failed to delete note", err)
		}

		fmt.Printf("Note '%s' deleted.\n", args[0])
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin [id]",
	Short: "Pin or unpin a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		note, err := a.engine.TogglePin(ctx, sess, args[0])
		if err != nil {
			fatal("Failed to toggle pin", err)
		}

		state := "unpinned"
		if note.Pinned {
			state = "pinned"
		}
		fmt.Printf("Note '%s' %s.\n", note.ID, state)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd, pinCmd)
}
