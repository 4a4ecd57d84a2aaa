package commands

import (
	"context"
	"fmt"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"
)

// NewRefreshCmd creates the one-shot refresh command.
func NewRefreshCmd() *cobra.Command {
	ulog := grovelogging.NewUnifiedLogger("grove-watch.refresh")

	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch remote sessions once and reconcile local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			changed := false
			eng.tracker.OnChange = func() { changed = true }

			if err := eng.tracker.Refresh(context.Background(), false); err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}

			if changed {
				ulog.Success("Refresh completed").
					Pretty("Refresh completed; tracked state updated").
					Emit()
			} else {
				ulog.Info("Refresh completed").
					Pretty("Refresh completed; no changes").
					Emit()
			}
			return nil
		},
	}
}
