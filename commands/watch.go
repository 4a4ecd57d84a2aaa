package commands

import (
	"context"
	"os/signal"
	"syscall"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-watch/internal/poller"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the foreground watcher daemon command.
func NewWatchCmd() *cobra.Command {
	ulog := grovelogging.NewUnifiedLogger("grove-watch.watch")

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll Grove Cloud for session changes and notify",
		Long:  `Run the background watcher: periodically fetch all remote sessions, reconcile them against locally tracked state, and send a notification whenever a session starts waiting for your attention or completes with a pull request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Prime local state before the timer-driven passes take over.
			if err := eng.tracker.Refresh(ctx, false); err != nil {
				ulog.Warn("Initial refresh failed").
					Err(err).
					Pretty("Initial refresh failed; will retry on the next poll").
					Emit()
			}

			p := poller.New(eng.cfg.PollInterval(), eng.cfg.FastPollInterval(), func(ctx context.Context) {
				_ = eng.tracker.Refresh(ctx, true)
			})
			p.Start(ctx)
			defer p.Stop()

			ulog.Info("Watching sessions").
				Field("interval_seconds", eng.cfg.Polling.IntervalSeconds).
				Pretty("Watching remote sessions. Press Ctrl-C to stop.").
				Emit()

			<-ctx.Done()
			return nil
		},
	}

	return cmd
}
