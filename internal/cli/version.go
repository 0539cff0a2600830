package cli

import (
	"fmt"

	"github.com/lherron/homeplan/internal/bundle"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionJSON {
		return jsonOut(cmd, map[string]any{
			"version":        Version,
			"commit":         GitCommit,
			"build_date":     BuildDate,
			"bundle_version": bundle.CurrentVersion,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "homeplan %s (commit %s, built %s, bundle v%d)\n", Version, GitCommit, BuildDate, bundle.CurrentVersion)
	return nil
}
