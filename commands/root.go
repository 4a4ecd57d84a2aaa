package commands

import (
	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for grove-watch.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"watch",
		"Watch remote Grove sessions and notify on state changes",
	)

	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewRefreshCmd())
	rootCmd.AddCommand(NewSessionsCmd())
	rootCmd.AddCommand(NewBranchesCmd())
	rootCmd.AddCommand(NewCacheCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
