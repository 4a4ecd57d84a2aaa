package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-watch/internal/state"
	"github.com/spf13/cobra"
)

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage locally tracked remote sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsGetCmd())
	cmd.AddCommand(newSessionsForgetCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var (
		jsonOutput bool
		hideClosed bool
		doRefresh  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked sessions and their last observed state",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if doRefresh {
				if err := eng.tracker.Refresh(context.Background(), false); err != nil {
					return fmt.Errorf("refresh failed: %w", err)
				}
			}

			sessions := eng.tracker.TrackedSessions()
			sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

			if hideClosed {
				filtered := sessions[:0]
				for _, s := range sessions {
					if !s.Terminated {
						filtered = append(filtered, s)
					}
				}
				sessions = filtered
			}

			if jsonOutput {
				data, err := json.MarshalIndent(sessions, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal sessions: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tRAW STATE\tCLOSED\tPR")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", s.ID, s.State, s.RawState, s.Terminated, firstPR(&s))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&hideClosed, "hide-closed", false, "Hide terminated sessions")
	cmd.Flags().BoolVar(&doRefresh, "refresh", false, "Fetch from Grove Cloud before listing")
	return cmd
}

func firstPR(s *state.TrackedSessionState) string {
	for _, out := range s.Outputs {
		if out.PullRequestURL != "" {
			return out.PullRequestURL
		}
	}
	return "-"
}

func newSessionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show the last observed state for one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			session, ok := eng.tracker.PreviousState(args[0])
			if !ok {
				return fmt.Errorf("session %s is not tracked locally", args[0])
			}

			data, err := json.MarshalIndent(session, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal session: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newSessionsForgetCmd() *cobra.Command {
	ulog := grovelogging.NewUnifiedLogger("grove-watch.sessions")

	return &cobra.Command{
		Use:   "forget <session-id>",
		Short: "Drop the local record for a session",
		Long:  `Remove a session from local tracking. The session itself is untouched; if the remote service still reports it, the next refresh re-tracks it from scratch.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.tracker.DeleteLocalRecord(args[0]); err != nil {
				return fmt.Errorf("failed to forget session: %w", err)
			}

			ulog.Success("Session forgotten").
				Field("session_id", args[0]).
				Pretty(fmt.Sprintf("Forgot local record for %s", args[0])).
				Emit()
			return nil
		},
	}
}
