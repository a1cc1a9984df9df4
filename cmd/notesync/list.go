package main

import (
	"context"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, pinned first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		notes, err := a.engine.List(ctx, sess)
		if err != nil {
			fatal("Error listing notes", err)
		}
		printNotes(notes)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find notes whose title or content contains the query",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		notes, err := a.engine.Search(ctx, sess, args[0])
		if err != nil {
			fatal("Error searching notes", err)
		}
		printNotes(notes)
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a note with its statistics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		note, err := a.engine.Get(ctx, sess, args[0])
		if err != nil {
			fatal("Error reading note", err)
		}
		printNote(note)
	},
}

func init() {
	rootCmd.AddCommand(listCmd, searchCmd, showCmd)
}
