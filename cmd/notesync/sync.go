package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"notesync/internal/domain"
	"notesync/internal/engine"

	"github.com/spf13/cobra"
)

var syncTimeout time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued edits and pull changes from other devices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, sess := mustApp(ctx)
		defer a.Close()

		ctx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()

		fmt.Println("Syncing...")
		state, err := syncOnce(ctx, a.engine.Coordinator(), sess)
		if err != nil {
			fatal("Sync failed", err)
		}

		pending, err := a.engine.Pending(context.Background(), sess)
		if err != nil {
			fatal("Error reading queue", err)
		}
		fmt.Printf("Sync completed (%s), %d edits queued.\n", state, pending)
	},
}

// syncOnce runs the coordinator until one sync settles into Idle or fails.
func syncOnce(ctx context.Context, coord *engine.Coordinator, sess domain.Session) (engine.State, error) {
	runCtx, cancel := context.WithCancel(ctx)
	states := make(chan engine.State)
	stopObserving := coord.Observe(func(s engine.State) {
		select {
		case states <- s:
		case <-runCtx.Done():
		}
	})

	runErr := make(chan error, 1)
	go func() { runErr <- coord.Run(runCtx) }()
	defer func() {
		cancel()
		<-runErr
		stopObserving()
	}()

	coord.SetSession(sess)
	coord.SetOnline(true)

	started := false
	for {
		select {
		case s := <-states:
			logger.Debug("sync state " + s.String())
			switch s.Kind {
			case engine.StateSyncing:
				started = true
			case engine.StateIdle:
				if started {
					return s, nil
				}
			case engine.StateError:
				return s, fmt.Errorf("sync stopped in state %s", s)
			}
		case err := <-runErr:
			runErr <- err
			return coord.State(), err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return coord.State(), fmt.Errorf("no answer from the server within %s", syncTimeout)
			}
			return coord.State(), ctx.Err()
		}
	}
}

func init() {
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 2*time.Minute, "Give up after this long")
	rootCmd.AddCommand(syncCmd)
}
