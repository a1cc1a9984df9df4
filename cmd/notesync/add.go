package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	addContent string
	addColor   string
	addPinned  bool
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		note, err := a.engine.Create(ctx, sess, args[0], addContent, addColor)
		if err != nil {
			fatal("Failed to create note", err)
		}

		if addPinned {
			if note, err = a.engine.TogglePin(ctx, sess, note.ID); err != nil {
				fatal("Failed to pin note", err)
			}
		}

		printNote(note)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addContent, "content", "c", "", "Note content")
	addCmd.Flags().StringVar(&addColor, "color", "", "Note colour from the palette, e.g. #FFF9C4")
	addCmd.Flags().BoolVar(&addPinned, "pin", false, "Pin the note")
	addCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(addCmd)
}
