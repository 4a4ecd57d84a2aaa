package commands

import (
	"encoding/json"
	"fmt"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var jsonOutput bool

	ulog := grovelogging.NewUnifiedLogger("grove-watch.version")

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version information for this binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				jsonData, err := json.MarshalIndent(map[string]string{
					"version": Version,
					"commit":  Commit,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal version info to JSON: %w", err)
				}
				ulog.Info("Version information").
					Field("version", Version).
					Field("commit", Commit).
					Pretty(string(jsonData)).
					Emit()
			} else {
				ulog.Info("Version information").
					Field("version", Version).
					Pretty(fmt.Sprintf("grove-watch %s (%s)", Version, Commit)).
					Emit()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version information as JSON")
	return cmd
}
