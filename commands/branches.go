package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattsolo1/grove-watch/internal/branches"
	"github.com/mattsolo1/grove-watch/internal/state"
	"github.com/spf13/cobra"
)

// NewBranchesCmd creates the branches command.
func NewBranchesCmd() *cobra.Command {
	var (
		owner        string
		repo         string
		forceRefresh bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "branches <source-id>",
		Short: "Show branch metadata for a source repository",
		Long:  `List remote branches, the resolved default branch, and the local current branch for a source repository. Results are cached; use --refresh to bypass the cache.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			workingDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve working directory: %w", err)
			}

			cache := branches.NewCache(
				eng.store,
				eng.client,
				&branches.WorkdirGit{Dir: workingDir, RemoteName: eng.cfg.Branches.RemoteName},
				eng.cfg.Branches,
			)

			source := state.SourceRef{ID: args[0], Owner: owner, Repo: repo}
			entry, err := cache.GetBranches(context.Background(), source, forceRefresh)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(entry, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal branches: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Default: %s\n", entry.DefaultBranch)
			if entry.CurrentBranch != "" {
				fmt.Printf("Current: %s\n", entry.CurrentBranch)
			}
			for _, b := range entry.Branches {
				fmt.Printf("  %s\n", b)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Source repository owner (for default-branch matching)")
	cmd.Flags().StringVar(&repo, "repo", "", "Source repository name (for default-branch matching)")
	cmd.Flags().BoolVar(&forceRefresh, "refresh", false, "Bypass the cache")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
