package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type statusView struct {
	Server   string `json:"server" yaml:"server"`
	UserID   string `json:"user_id" yaml:"user_id"`
	DeviceID string `json:"device_id" yaml:"device_id"`
	Notes    int    `json:"notes" yaml:"notes"`
	Queued   int    `json:"queued" yaml:"queued"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the signed-in account and the sync queue",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, sess := mustApp(ctx)
		defer a.Close()

		notes, err := a.engine.List(ctx, sess)
		if err != nil {
			fatal("Error listing notes", err)
		}
		queued, err := a.engine.Pending(ctx, sess)
		if err != nil {
			fatal("Error reading queue", err)
		}

		v := statusView{
			Server:   a.cfg.ServerURL,
			UserID:   sess.UserID,
			DeviceID: sess.DeviceID,
			Notes:    len(notes),
			Queued:   queued,
		}
		if encode(v) {
			return
		}

		fmt.Printf("Server:  %s\n", v.Server)
		fmt.Printf("User:    %s\n", v.UserID)
		fmt.Printf("Device:  %s\n", v.DeviceID)
		fmt.Printf("Notes:   %d\n", v.Notes)
		fmt.Printf("Queued:  %d edits waiting to sync\n", v.Queued)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
