package main

import (
	"context"
	"errors"

	"notesync/internal/domain"

	"github.com/spf13/cobra"
)

var (
	editTitle   string
	editContent string
	editColor   string
)

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change a note's title, content or colour",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var patch domain.Patch
		if cmd.Flags().Changed("title") {
			patch.Title = &editTitle
		}
		if cmd.Flags().Changed("content") {
			patch.Content = &editContent
		}
		if cmd.Flags().Changed("color") {
			patch.Color = &editColor
		}
		if patch.Empty() {
			fatal("Nothing to change", errors.New("pass --title, --content or --color"))
		}

		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		note, err := a.engine.Update(ctx, sess, args[0], patch)
		if err != nil {
			fatal("Failed to update note", err)
		}

		printNote(note)
	},
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVarP(&editContent, "content", "c", "", "New content")
	editCmd.Flags().StringVar(&editColor, "color", "", "New colour from the palette")
	rootCmd.AddCommand(editCmd)
}
