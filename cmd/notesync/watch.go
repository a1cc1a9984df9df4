package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"notesync/internal/domain"
	"notesync/internal/engine"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay online, sync continuously and print changes as they arrive",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, sess := mustApp(ctx)
		defer a.Close()

		coord := a.engine.Coordinator()
		stopObserving := coord.Observe(func(s engine.State) {
			fmt.Printf("[sync] %s\n", s)
		})
		defer stopObserving()

		runErr := make(chan error, 1)
		go func() { runErr <- coord.Run(ctx) }()

		coord.SetSession(sess)
		coord.SetOnline(true)

		for ctx.Err() == nil {
			sub, err := a.engine.Subscribe(ctx, sess)
			if err != nil {
				fatal("Failed to subscribe", err)
			}
			for ev := range sub.Events() {
				printEvent(ev)
			}
			if sub.Overflowed() {
				logger.Warn("change stream fell behind, resubscribing")
			}
		}

		if err := <-runErr; err != nil && ctx.Err() == nil {
			logger.Error("coordinator stopped", zap.Error(err))
		}
		fmt.Println("Stopped.")
	},
}

func printEvent(ev domain.ChangeEvent) {
	switch ev.Kind {
	case domain.EventOverride:
		fmt.Printf("[%s] %s %q: your edit to %v was replaced by a newer one\n", ev.Origin, ev.Kind, ev.Note.Title, ev.Fields)
	default:
		fmt.Printf("[%s] %s %s %q\n", ev.Origin, ev.Kind, ev.Note.ID, ev.Note.Title)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
