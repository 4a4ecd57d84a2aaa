package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the local caches",
	}

	cmd.AddCommand(newCacheShowCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

func newCacheShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List durable cache keys and sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			keys, err := eng.store.Keys("")
			if err != nil {
				return fmt.Errorf("failed to list cache keys: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tBYTES")
			for _, key := range keys {
				value, _, err := eng.store.Get(key)
				if err != nil {
					return fmt.Errorf("failed to read key %q: %w", key, err)
				}
				fmt.Fprintf(w, "%s\t%d\n", key, len(value))
			}
			return w.Flush()
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	ulog := grovelogging.NewUnifiedLogger("grove-watch.cache")

	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all tracked session state and caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			// User-initiated foreground action: persistence failures are
			// surfaced, not swallowed.
			if err := eng.tracker.ResetAll(); err != nil {
				return err
			}

			branchKeys, err := eng.store.Keys("branches/")
			if err != nil {
				return fmt.Errorf("failed to list branch cache keys: %w", err)
			}
			for _, key := range branchKeys {
				if err := eng.store.Delete(key); err != nil {
					return fmt.Errorf("failed to clear branch cache: %w", err)
				}
			}

			ulog.Success("Caches cleared").
				Field("branch_entries", len(branchKeys)).
				Pretty("Cleared session state, PR status cache and branch caches").
				Emit()
			return nil
		},
	}
}
